package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid body: %w: %w", coursebot.ErrInvalidArgument, err)
	}
	return nil
}

// writeError maps bot errors to HTTP status codes.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coursebot.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, coursebot.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, coursebot.ErrNoSuchEntity):
		status = http.StatusNotFound
	default:
		log.Error("bot request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
