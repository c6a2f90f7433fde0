package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
	"github.com/MrSnakeDoc/coursebots/internal/store"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the store answers a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pingStore(r.Context(), d.Store); err != nil {
			d.Logger.Warn("store not ready", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}

func pingStore(ctx context.Context, s store.Store) error {
	if s == nil {
		return store.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return store.Ping(ctx, s)
}
