package coursebot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/index"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

// DefaultPrefix names bots created without an explicit name: Anna0, Anna1...
const DefaultPrefix = "Anna"

// Options configures a Bots registry.
type Options struct {
	Prefix string // default bot name prefix, DefaultPrefix when empty
}

// Bots creates, restores and looks up bots.
type Bots struct {
	api     *API
	app     chat.CourseApp
	factory chat.MessageFactory
	logger  logger.Logger
	prefix  string
	live    *index.MemoryIndex[*Bot]

	mu sync.Mutex // serialises creation
}

// NewBots creates a registry over database and the chat service
func NewBots(database *db.Database, app chat.CourseApp, factory chat.MessageFactory, log logger.Logger, opts Options) *Bots {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Bots{
		api:     NewAPI(database),
		app:     app,
		factory: factory,
		logger:  log,
		prefix:  opts.Prefix,
		live:    index.NewMemoryIndex[*Bot](),
	}
}

// API exposes the storage façade the registry works on.
func (bs *Bots) API() *API { return bs.api }

// Prepare initialises the global id sequences. It is safe to call on an
// already prepared store.
func (bs *Bots) Prepare(ctx context.Context) error {
	for _, seq := range []string{KeyLastBotID, KeyLastChannelID, KeyLastSurveyID} {
		if err := bs.api.CreateMetadata(ctx, LabelMetadata, seq, 0); err != nil {
			return fmt.Errorf("failed to prepare %s: %w", seq, err)
		}
	}
	return nil
}

// Start brings every stored bot back to life: a fresh chat session, its
// triggers, its count filters, its listener and its channels.
func (bs *Bots) Start(ctx context.Context) error {
	names, err := bs.api.TreeGetAll(ctx, TreeAllBots, "")
	if err != nil {
		return fmt.Errorf("failed to list bots: %w", err)
	}
	for _, name := range names {
		if _, err := bs.Bot(ctx, &name); err != nil {
			return fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	bs.logger.Info("bots started", logger.Int("count", len(names)))
	return nil
}

// Bot returns the bot called name, creating it when it does not exist. A
// nil name always creates a new bot named after its id.
func (bs *Bots) Bot(ctx context.Context, name *string) (*Bot, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if name != nil {
		if b, ok := bs.live.Get(*name); ok {
			return b, nil
		}
		m, err := bs.api.FindBot(ctx, *name)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return bs.restore(ctx, m)
		}
	}
	return bs.create(ctx, name)
}

// Get returns a live bot without creating one.
func (bs *Bots) Get(name string) (*Bot, bool) {
	return bs.live.Get(name)
}

// Live returns how many bots are running.
func (bs *Bots) Live() int { return bs.live.Count() }

// Bots lists bot names in creation order, either all of them or those in
// channel.
func (bs *Bots) Bots(ctx context.Context, channel *string) ([]string, error) {
	if channel == nil {
		return bs.api.TreeGetAll(ctx, TreeAllBots, "")
	}
	return bs.api.TreeGetAll(ctx, TreeChannelBots, *channel)
}

func (bs *Bots) create(ctx context.Context, name *string) (*Bot, error) {
	id, err := bs.api.NextID(ctx, KeyLastBotID)
	if err != nil {
		return nil, err
	}
	botName := bs.prefix + strconv.FormatInt(id, 10)
	if name != nil {
		botName = *name
	}

	secret := uuid.NewString()
	token, err := bs.app.Login(ctx, botName, secret)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w: %w", botName, ErrNotAuthorized, err)
	}
	m, err := bs.api.CreateBot(ctx, id, botName, token, secret)
	if err != nil {
		return nil, err
	}
	if _, err := bs.api.TreeInsert(ctx, TreeAllBots, "", db.TreeKey{Primary: -id, Secondary: botName}, botName); err != nil {
		return nil, err
	}
	if err := bs.api.CreateSession(ctx, token, botName); err != nil {
		return nil, err
	}

	b := newBot(m, bs.api, bs.app, bs.factory, bs.logger)
	bs.live.Add(botName, b)
	bs.logger.Info("bot created",
		logger.String("bot", botName),
		logger.Int64("id", id))
	return b, nil
}

func (bs *Bots) restore(ctx context.Context, m *BotModel) (*Bot, error) {
	token, err := bs.app.Login(ctx, m.Name, m.Secret)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w: %w", m.Name, ErrNotAuthorized, err)
	}
	if token != m.Token {
		if _, err := bs.api.DeleteSession(ctx, m.Token); err != nil {
			return nil, err
		}
		if err := bs.api.CreateSession(ctx, token, m.Name); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
			return nil, err
		}
		if m, err = bs.api.UpdateBot(ctx, m.Name, map[string]any{KeyBotToken: token}); err != nil {
			return nil, err
		}
	}

	b := newBot(m, bs.api, bs.app, bs.factory, bs.logger)
	if err := b.restoreRules(ctx); err != nil {
		return nil, err
	}
	if err := b.relogin(ctx, token); err != nil {
		return nil, err
	}
	if err := b.rejoin(ctx); err != nil {
		return nil, err
	}
	bs.live.Add(m.Name, b)
	bs.logger.Info("bot restored", logger.String("bot", m.Name))
	return b, nil
}

// Stop detaches every live bot from the chat service. Stored state is kept
// and a later Start picks it up again.
func (bs *Bots) Stop(ctx context.Context) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	for _, b := range bs.live.GetAll() {
		if err := b.detach(ctx); err != nil {
			bs.logger.Warn("failed to detach bot",
				logger.String("bot", b.Name()),
				logger.Error(err))
		}
		bs.live.Delete(b.Name())
	}
}
