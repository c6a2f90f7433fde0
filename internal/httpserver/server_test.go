package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/chat/memchat"
	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/httpserver/deps"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
	"github.com/MrSnakeDoc/coursebots/internal/store/memory"
)

type fixture struct {
	t       *testing.T
	handler http.Handler
	chat    *memchat.Service
	factory *memchat.Factory
	store   *memory.Store
	trigger chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	st := memory.NewStore()
	svc := memchat.New(log)
	factory := memchat.NewFactory(nil)
	bots := coursebot.NewBots(db.New(st), svc, factory, log, coursebot.Options{})
	require.NoError(t, bots.Prepare(ctx))

	trigger := make(chan struct{}, 1)
	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		Version:       "test",
		AllowedCIDRS:  []string{"192.0.2.0/24"},
		Bots:          bots,
		Store:         st,
		StoreKind:     "memory",
		BotsFile:      "bots.yaml",
		ReloadTrigger: trigger,
		LastReload:    func() time.Time { return time.Time{} },
	}
	return &fixture{t: t, handler: NewRouter(d), chat: svc, factory: factory, store: st, trigger: trigger}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) user(name string, channels ...string) string {
	f.t.Helper()
	ctx := context.Background()
	token, err := f.chat.Login(ctx, name, "pw")
	require.NoError(f.t, err)
	for _, ch := range channels {
		require.NoError(f.t, f.chat.ChannelJoin(ctx, token, ch))
	}
	return token
}

func (f *fixture) send(token, channel, text string) {
	f.t.Helper()
	ctx := context.Background()
	msg, err := f.factory.Create(ctx, chat.MediaText, []byte(text))
	require.NoError(f.t, err)
	require.NoError(f.t, f.chat.ChannelSend(ctx, token, channel, msg))
}

func TestProbes(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])

	w = f.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["ready"])

	require.NoError(t, f.store.Close())
	w = f.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReload(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/reload", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/reload", nil).Code)
	<-f.trigger

	r := httptest.NewRequest(http.MethodPost, "/reload", nil)
	r.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInfra(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/bots", nil)

	w := f.do(http.MethodGet, "/infra", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Status     string `json:"status"`
		Components map[string]struct {
			OK       bool `json:"ok"`
			BotsLive *int `json:"bots_live"`
		} `json:"components"`
	}](t, w)

	assert.Equal(t, "degraded", body.Status, "bots file never applied")
	assert.True(t, body.Components["store"].OK)
	require.NotNil(t, body.Components["bots"].BotsLive)
	assert.Equal(t, 1, *body.Components["bots"].BotsLive)
}

func TestBotsAPI(t *testing.T) {
	f := newFixture(t)
	gal := f.user("gal", "#c")

	w := f.do(http.MethodPost, "/api/bots", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Anna0", decode[map[string]any](t, w)["name"])

	w = f.do(http.MethodPost, "/api/bots", map[string]string{"name": "helper"})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/bots", map[string]string{"name": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/bots", map[string]string{"nick": "x"}).Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/bots/helper/join", map[string]string{"channel": "#c"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/api/bots/helper/join", map[string]string{"channel": "#new"}).Code)

	w = f.do(http.MethodGet, "/api/bots/helper/channels", nil)
	assert.Equal(t, []any{"#c"}, decode[map[string]any](t, w)["channels"])

	w = f.do(http.MethodGet, "/api/bots", nil)
	assert.Equal(t, []any{"Anna0", "helper"}, decode[map[string]any](t, w)["bots"])
	w = f.do(http.MethodGet, "/api/bots?channel=%23c", nil)
	assert.Equal(t, []any{"helper"}, decode[map[string]any](t, w)["bots"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/bots/ghost/channels", nil).Code)

	// counting
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/bots/helper/count", map[string]any{}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/bots/helper/count", map[string]any{"media": "hologram"}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/bots/helper/count", map[string]any{"media": "text"}).Code)
	f.send(gal, "#c", "one")
	f.send(gal, "#c", "two")

	w = f.do(http.MethodGet, "/api/bots/helper/count?media=TEXT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode[map[string]any](t, w)["count"])
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/bots/helper/count?regex=x", nil).Code)

	// triggers
	w = f.do(http.MethodPut, "/api/bots/helper/triggers/calc", map[string]any{"trigger": "calc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[map[string]any](t, w)["previous"])
	w = f.do(http.MethodPut, "/api/bots/helper/triggers/calculation", map[string]any{"trigger": nil})
	assert.Equal(t, "calc", decode[map[string]any](t, w)["previous"])
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/api/bots/helper/triggers/dance", map[string]any{"trigger": "x"}).Code)

	// surveys
	w = f.do(http.MethodPost, "/api/bots/helper/surveys", map[string]any{
		"channel": "#c", "question": "tea?", "answers": []string{"yes", "no"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)
	f.send(gal, "#c", "no")

	w = f.do(http.MethodGet, "/api/bots/helper/surveys/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(0), float64(1)}, decode[map[string]any](t, w)["results"])
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/bots/Anna0/surveys/"+id, nil).Code)

	// stats
	w = f.do(http.MethodGet, "/api/bots/helper/stats?channel=%23c", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gal", decode[map[string]any](t, w)["most_active"])
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/bots/Anna0/stats?channel=%23c", nil).Code)

	w = f.do(http.MethodGet, "/api/bots/helper/seen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[map[string]any](t, w)["seen"])

	// part
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/api/bots/helper/part", map[string]string{"channel": "#c"}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/bots/helper/part", map[string]string{"channel": "#c"}).Code)
}
