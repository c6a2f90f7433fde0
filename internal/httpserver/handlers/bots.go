package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
)

type botsResponse struct {
	Bots []string `json:"bots"`
}

type createBotRequest struct {
	Name *string `json:"name"`
}

type botResponse struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

type channelRequest struct {
	Channel string `json:"channel"`
}

type channelsResponse struct {
	Channels []string `json:"channels"`
}

type countRequest struct {
	Channel *string `json:"channel"`
	Regex   *string `json:"regex"`
	Media   *string `json:"media"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type triggerRequest struct {
	Trigger *string `json:"trigger"`
}

type triggerResponse struct {
	Previous *string `json:"previous"`
}

type surveyRequest struct {
	Channel  string   `json:"channel"`
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

type surveyResponse struct {
	ID      string  `json:"id"`
	Results []int64 `json:"results,omitempty"`
}

type statsResponse struct {
	Channel    string  `json:"channel"`
	MostActive *string `json:"most_active"`
	Richest    *string `json:"richest"`
}

type seenResponse struct {
	Seen *time.Time `json:"seen"`
}

// ListBots lists bots in creation order, optionally only those in ?channel=.
func ListBots(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var channel *string
		if r.URL.Query().Has("channel") {
			ch := r.URL.Query().Get("channel")
			channel = &ch
		}
		names, err := d.Bots.Bots(r.Context(), channel)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, botsResponse{Bots: names})
	}
}

// CreateBot returns the bot named in the body, creating it when needed.
func CreateBot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBotRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if req.Name != nil && *req.Name == "" {
			writeError(w, d.Logger, fmt.Errorf("empty name: %w", coursebot.ErrInvalidArgument))
			return
		}
		b, err := d.Bots.Bot(r.Context(), req.Name)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, botResponse{Name: b.Name(), ID: b.ID()})
	}
}

// botHandler resolves {name} to a live bot.
func botHandler(d deps.Deps, h func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		b, ok := d.Bots.Get(name)
		if !ok {
			writeError(w, d.Logger, fmt.Errorf("bot %q: %w", name, coursebot.ErrNoSuchEntity))
			return
		}
		h(w, r, b)
	}
}

func BotChannels(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		channels, err := b.Channels(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if channels == nil {
			channels = []string{}
		}
		writeJSON(w, http.StatusOK, channelsResponse{Channels: channels})
	})
}

func JoinChannel(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		var req channelRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := b.Join(r.Context(), req.Channel); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func PartChannel(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		var req channelRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := b.Part(r.Context(), req.Channel); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func parseMedia(s *string) (*chat.MediaType, error) {
	if s == nil {
		return nil, nil
	}
	m, err := chat.ParseMediaType(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coursebot.ErrInvalidArgument, err)
	}
	return &m, nil
}

// BeginCount starts (or restarts) a counter.
func BeginCount(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		var req countRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		media, err := parseMedia(req.Media)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		if err := b.BeginCount(r.Context(), req.Channel, req.Regex, media); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// Count reads a counter selected by ?channel=, ?regex= and ?media=.
func Count(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		q := r.URL.Query()
		optional := func(key string) *string {
			if !q.Has(key) {
				return nil
			}
			v := q.Get(key)
			return &v
		}
		media, err := parseMedia(optional("media"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		n, err := b.Count(r.Context(), optional("channel"), optional("regex"), media)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	})
}

// SetTrigger replaces the {kind} trigger. A null trigger disables it.
func SetTrigger(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		kind, err := coursebot.ParseTriggerKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		var req triggerRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		prev, err := b.SetTrigger(r.Context(), kind, req.Trigger)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, triggerResponse{Previous: prev})
	})
}

func RunSurvey(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		var req surveyRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		id, err := b.RunSurvey(r.Context(), req.Channel, req.Question, req.Answers)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, surveyResponse{ID: id})
	})
}

func SurveyResults(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		id := chi.URLParam(r, "id")
		results, err := b.SurveyResults(r.Context(), id)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, surveyResponse{ID: id, Results: results})
	})
}

// ChannelStats returns the most active and the richest user of ?channel=.
func ChannelStats(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		channel := r.URL.Query().Get("channel")
		active, err := b.MostActiveUser(r.Context(), channel)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		richest, err := b.RichestUser(r.Context(), channel)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Channel: channel, MostActive: active, Richest: richest})
	})
}

func SeenTime(d deps.Deps) http.HandlerFunc {
	return botHandler(d, func(w http.ResponseWriter, r *http.Request, b *coursebot.Bot) {
		seen, err := b.SeenTime(r.Context(), r.URL.Query().Get("user"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, seenResponse{Seen: seen})
	})
}
