package coursebot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

// TriggerKind selects one of the bot's trigger phrases.
type TriggerKind int

const (
	TriggerCalculation TriggerKind = iota
	TriggerTip
	triggerKinds
)

var triggerFields = [triggerKinds]string{
	TriggerCalculation: KeyBotCalculationTrigger,
	TriggerTip:         KeyBotTipTrigger,
}

func (k TriggerKind) String() string {
	switch k {
	case TriggerCalculation:
		return "calculation"
	case TriggerTip:
		return "tip"
	default:
		return "TriggerKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseTriggerKind accepts "calculation" (or "calc") and "tip".
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch s {
	case "calculation", "calc":
		return TriggerCalculation, nil
	case "tip":
		return TriggerTip, nil
	}
	return 0, fmt.Errorf("trigger kind %q: %w", s, ErrInvalidArgument)
}

type compiledRule struct {
	rule countRule
	re   *regexp.Regexp
}

func (c compiledRule) matches(msg chat.Message) bool {
	if c.rule.Media != nil && msg.Media != *c.rule.Media {
		return false
	}
	if c.re != nil && !c.re.Match(msg.Contents) {
		return false
	}
	return true
}

// Bot is one live chat bot. Its durable state lives in storage; the struct
// keeps the chat session and compiled listeners.
type Bot struct {
	id      int64
	name    string
	api     *API
	app     chat.CourseApp
	factory chat.MessageFactory
	logger  logger.Logger

	mu        sync.Mutex
	token     string
	listener  chat.ListenerID
	listening bool
	triggers  [triggerKinds]*string
	patterns  [triggerKinds]*regexp.Regexp
	rules     map[string]compiledRule

	// setting orders trigger updates so storage and memory agree.
	setting sync.Mutex

	// ledger serialises the read-modify-write bookkeeping done by the
	// listener. It is never held across a chat send.
	ledger sync.Mutex
}

func newBot(m *BotModel, api *API, app chat.CourseApp, factory chat.MessageFactory, log logger.Logger) *Bot {
	b := &Bot{
		id:      m.ID,
		name:    m.Name,
		api:     api,
		app:     app,
		factory: factory,
		logger:  log.With(logger.String("bot", m.Name)),
		token:   m.Token,
		rules:   make(map[string]compiledRule),
	}
	b.setTriggerLocked(TriggerCalculation, m.CalculationTrigger)
	b.setTriggerLocked(TriggerTip, m.TipTrigger)
	return b
}

// Name returns the bot's chat user name.
func (b *Bot) Name() string { return b.name }

// ID returns the creation sequence number.
func (b *Bot) ID() int64 { return b.id }

func (b *Bot) session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// Join makes the bot join channel. Joining twice is the same as joining once.
func (b *Bot) Join(ctx context.Context, channel string) error {
	if err := b.app.ChannelJoin(ctx, b.session(), channel); err != nil {
		return fmt.Errorf("join %s: %w: %w", channel, ErrNotAuthorized, err)
	}
	if _, err := b.api.EnsureChannel(ctx, channel); err != nil {
		return err
	}
	if err := b.api.ListInsert(ctx, ListBotChannels, b.name, channel); err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", b.name, channel, err)
	}
	if _, err := b.api.TreeInsert(ctx, TreeChannelBots, channel, b.creationKey(), b.name); err != nil {
		return fmt.Errorf("failed to link %s to %s: %w", channel, b.name, err)
	}
	if err := b.ensureListening(ctx); err != nil {
		return err
	}
	b.logger.Info("joined channel", logger.String("channel", channel))
	return nil
}

// Part leaves channel and resets the bot's statistics for it. Global
// counters keep their value.
func (b *Bot) Part(ctx context.Context, channel string) error {
	partErr := b.app.ChannelPart(ctx, b.session(), channel)
	if partErr != nil {
		// a kicked bot still has local bookkeeping to drop
		known, err := b.api.ListContains(ctx, ListBotChannels, b.name, channel)
		if err != nil {
			return err
		}
		if !known || !errors.Is(partErr, chat.ErrNoSuchEntity) {
			return fmt.Errorf("part %s: %w: %w", channel, ErrNoSuchEntity, partErr)
		}
	}

	if err := b.forget(ctx, channel); err != nil {
		return err
	}
	b.logger.Info("parted channel", logger.String("channel", channel))

	if partErr != nil {
		return fmt.Errorf("part %s: %w: %w", channel, ErrNoSuchEntity, partErr)
	}
	return nil
}

// forget drops every local trace of channel: membership and per-channel
// statistics.
func (b *Bot) forget(ctx context.Context, channel string) error {
	if err := b.api.ListRemove(ctx, ListBotChannels, b.name, channel); err != nil {
		return err
	}
	if _, err := b.api.TreeRemove(ctx, TreeChannelBots, channel, b.creationKey()); err != nil {
		return err
	}
	return b.resetChannel(ctx, channel)
}

// rejoin joins every stored channel again on the current session. Channels
// the chat service refuses are forgotten.
func (b *Bot) rejoin(ctx context.Context) error {
	channels, err := b.Channels(ctx)
	if err != nil {
		return err
	}
	token := b.session()
	for _, ch := range channels {
		joinErr := b.app.ChannelJoin(ctx, token, ch)
		if joinErr == nil {
			continue
		}
		b.logger.Warn("dropping channel after failed rejoin",
			logger.String("channel", ch),
			logger.Error(joinErr))
		if err := b.forget(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

// Channels lists joined channels in join order.
func (b *Bot) Channels(ctx context.Context) ([]string, error) {
	return b.api.ListGet(ctx, ListBotChannels, b.name)
}

// BeginCount starts counting messages matching regex and/or media, either in
// one channel or, with a nil channel, globally and in every joined channel.
// All affected counters restart at zero. regex must match the whole message.
func (b *Bot) BeginCount(ctx context.Context, channel, regex *string, media *chat.MediaType) error {
	if regex == nil && media == nil {
		return fmt.Errorf("count needs a regex or a media type: %w", ErrInvalidArgument)
	}
	rule := countRule{Regex: regex, Media: media}
	compiled, err := compileRule(rule)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.rules[rule.encode()] = compiled
	b.mu.Unlock()
	if err := b.api.ListInsert(ctx, ListBotCountRules, b.name, rule.encode()); err != nil {
		return fmt.Errorf("failed to store count rule: %w", err)
	}

	label := rule.label()
	var channels []string
	if channel != nil {
		channels = []string{*channel}
	} else {
		if err := b.api.UpdateMetadata(ctx, label.Encode(), b.name, 0); err != nil {
			return err
		}
		if channels, err = b.Channels(ctx); err != nil {
			return err
		}
	}
	for _, ch := range channels {
		if err := b.api.UpdateMetadata(ctx, label.InChannel(ch).Encode(), b.name, 0); err != nil {
			return err
		}
	}
	return b.ensureListening(ctx)
}

// Count reads a counter set up by BeginCount.
func (b *Bot) Count(ctx context.Context, channel, regex *string, media *chat.MediaType) (int64, error) {
	label := CountLabel{Regex: regex, Media: media}
	if channel != nil {
		label = label.InChannel(*channel)
	}
	v, err := b.api.FindMetadata(ctx, label.Encode(), b.name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("counter was never started: %w", ErrNoSuchEntity)
	}
	return *v, nil
}

// Counting reports whether a count with this filter was started.
func (b *Bot) Counting(regex *string, media *chat.MediaType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rules[countRule{Regex: regex, Media: media}.encode()]
	return ok
}

// SetCalculationTrigger replaces the calculation phrase and returns the
// previous one. A nil trigger disables calculations.
func (b *Bot) SetCalculationTrigger(ctx context.Context, trigger *string) (*string, error) {
	return b.SetTrigger(ctx, TriggerCalculation, trigger)
}

// SetTipTrigger replaces the tipping phrase and returns the previous one.
func (b *Bot) SetTipTrigger(ctx context.Context, trigger *string) (*string, error) {
	return b.SetTrigger(ctx, TriggerTip, trigger)
}

// SetTrigger replaces the phrase of kind and returns the previous one.
func (b *Bot) SetTrigger(ctx context.Context, kind TriggerKind, trigger *string) (*string, error) {
	if kind < 0 || kind >= triggerKinds {
		return nil, fmt.Errorf("trigger kind %d: %w", kind, ErrInvalidArgument)
	}
	if trigger != nil && *trigger == "" {
		return nil, fmt.Errorf("empty trigger: %w", ErrInvalidArgument)
	}

	b.setting.Lock()
	defer b.setting.Unlock()

	if _, err := b.api.UpdateBot(ctx, b.name, map[string]any{triggerFields[kind]: trigger}); err != nil {
		return nil, err
	}

	b.mu.Lock()
	prev := b.triggers[kind]
	b.setTriggerLocked(kind, trigger)
	b.mu.Unlock()

	if err := b.ensureListening(ctx); err != nil {
		return nil, err
	}
	return prev, nil
}

// Trigger returns the current phrase of kind.
func (b *Bot) Trigger(kind TriggerKind) *string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind < 0 || kind >= triggerKinds {
		return nil
	}
	return b.triggers[kind]
}

func (b *Bot) setTriggerLocked(kind TriggerKind, trigger *string) {
	b.triggers[kind] = trigger
	b.patterns[kind] = nil
	if trigger == nil {
		return
	}
	switch kind {
	case TriggerCalculation:
		b.patterns[kind] = calcPattern(*trigger)
	case TriggerTip:
		b.patterns[kind] = tipPattern(*trigger)
	}
}

// SeenTime returns the creation time of the newest channel message the bot
// has seen, or nil. One value is kept per bot; user does not narrow it.
func (b *Bot) SeenTime(ctx context.Context, user string) (*time.Time, error) {
	m, err := b.api.FindBot(ctx, b.name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("bot %s: %w", b.name, ErrNoSuchEntity)
	}
	return m.LastSeen, nil
}

func (b *Bot) requireMember(ctx context.Context, channel string) error {
	in, err := b.app.IsUserInChannel(ctx, b.session(), channel, b.name)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", channel, ErrNoSuchEntity, err)
	}
	if !in {
		return fmt.Errorf("%s is not in %s: %w", b.name, channel, ErrNoSuchEntity)
	}
	return nil
}

func (b *Bot) creationKey() db.TreeKey {
	return db.TreeKey{Primary: -b.id, Secondary: b.name}
}

func (b *Bot) ensureListening(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listening {
		return nil
	}
	id, err := b.app.AddListener(ctx, b.token, b.handle)
	if err != nil {
		return fmt.Errorf("failed to add listener: %w", err)
	}
	b.listener, b.listening = id, true
	return nil
}

// relogin swaps the chat session, moving the listener along.
func (b *Bot) relogin(ctx context.Context, token string) error {
	b.mu.Lock()
	old, wasListening, id := b.token, b.listening, b.listener
	b.token, b.listening = token, false
	b.mu.Unlock()

	if wasListening && old != token {
		if err := b.app.RemoveListener(ctx, old, id); err != nil && !errors.Is(err, chat.ErrNotAuthorized) {
			b.logger.Warn("failed to drop previous listener", logger.Error(err))
		}
	}
	return b.ensureListening(ctx)
}

// restoreRules recompiles the persisted count filters.
func (b *Bot) restoreRules(ctx context.Context) error {
	encoded, err := b.api.ListGet(ctx, ListBotCountRules, b.name)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range encoded {
		r, err := decodeRule(e)
		if err != nil {
			return fmt.Errorf("failed to decode count rule %q: %w", e, err)
		}
		c, err := compileRule(r)
		if err != nil {
			return err
		}
		b.rules[r.encode()] = c
	}
	return nil
}

func compileRule(r countRule) (compiledRule, error) {
	c := compiledRule{rule: r}
	if r.Regex != nil {
		re, err := regexp.Compile(`^(?:` + *r.Regex + `)$`)
		if err != nil {
			return c, fmt.Errorf("regex %q: %w: %w", *r.Regex, ErrInvalidArgument, err)
		}
		c.re = re
	}
	return c, nil
}

func (b *Bot) detach(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.listening {
		return nil
	}
	b.listening = false
	return b.app.RemoveListener(ctx, b.token, b.listener)
}
