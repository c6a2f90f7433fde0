package coursebot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/chat/memchat"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/store"
	"github.com/MrSnakeDoc/coursebots/internal/store/memory"
)

// ticking clock: every reading is one second after the previous one
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type env struct {
	t       *testing.T
	ctx     context.Context
	db      *db.Database
	chat    *memchat.Service
	factory *memchat.Factory
	bots    *Bots
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvOn(t, memory.NewStore())
}

func newEnvOn(t *testing.T, kv store.Store) *env {
	t.Helper()
	ctx := context.Background()
	database := db.New(kv)
	svc := memchat.New(nil)
	f := memchat.NewFactory((&clock{t: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)}).now)

	bots := NewBots(database, svc, f, nil, Options{})
	require.NoError(t, bots.Prepare(ctx))
	return &env{t: t, ctx: ctx, db: database, chat: svc, factory: f, bots: bots}
}

// user logs in and joins the given channels.
func (e *env) user(name string, channels ...string) string {
	e.t.Helper()
	token, err := e.chat.Login(e.ctx, name, "pw-"+name)
	require.NoError(e.t, err)
	for _, ch := range channels {
		require.NoError(e.t, e.chat.ChannelJoin(e.ctx, token, ch))
	}
	return token
}

func (e *env) bot(name string, channels ...string) *Bot {
	e.t.Helper()
	var n *string
	if name != "" {
		n = &name
	}
	b, err := e.bots.Bot(e.ctx, n)
	require.NoError(e.t, err)
	for _, ch := range channels {
		require.NoError(e.t, b.Join(e.ctx, ch))
	}
	return b
}

func (e *env) send(token, channel, text string) chat.Message {
	e.t.Helper()
	return e.sendMedia(token, channel, chat.MediaText, text)
}

func (e *env) sendMedia(token, channel string, media chat.MediaType, text string) chat.Message {
	e.t.Helper()
	msg, err := e.factory.Create(e.ctx, media, []byte(text))
	require.NoError(e.t, err)
	require.NoError(e.t, e.chat.ChannelSend(e.ctx, token, channel, msg))
	return msg
}

type heard struct {
	mu     sync.Mutex
	source []string
	body   []string
}

func (h *heard) listen(_ context.Context, source string, msg chat.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = append(h.source, source)
	h.body = append(h.body, string(msg.Contents))
	return nil
}

func (h *heard) from(source string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for i, s := range h.source {
		if s == source {
			out = append(out, h.body[i])
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
