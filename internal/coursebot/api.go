package coursebot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/db"
)

// API composes the storage structures into domain operations. It keeps no
// state of its own.
type API struct {
	db *db.Database
}

// NewAPI wraps database
func NewAPI(database *db.Database) *API {
	return &API{db: database}
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

// CreateSession records that token belongs to bot.
func (a *API) CreateSession(ctx context.Context, token, bot string) error {
	_, err := a.db.Document(TypeSession).Create(token).Set(KeySessionBot, bot).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindSession returns the bot owning token, or "" when unknown.
func (a *API) FindSession(ctx context.Context, token string) (string, error) {
	r, err := a.db.Document(TypeSession).Find(ctx, token, KeySessionBot)
	if err != nil || r == nil {
		return "", err
	}
	return r.String(KeySessionBot), nil
}

// DeleteSession forgets token and returns the bot that owned it.
func (a *API) DeleteSession(ctx context.Context, token string) (string, error) {
	r, err := a.db.Document(TypeSession).Delete(ctx, token, KeySessionBot)
	if err != nil || r == nil {
		return "", err
	}
	return r.String(KeySessionBot), nil
}

// ─────────────────────────────────────────────────────────────────
// Bots
// ─────────────────────────────────────────────────────────────────

func (a *API) FindBot(ctx context.Context, name string) (*BotModel, error) {
	r, err := a.db.Document(TypeBot).Find(ctx, name)
	if err != nil || r == nil {
		return nil, err
	}
	return botFromRecord(r), nil
}

func (a *API) CreateBot(ctx context.Context, id int64, name, token, secret string) (*BotModel, error) {
	r, err := a.db.Document(TypeBot).Create(name).
		Set(KeyBotID, id).
		Set(KeyBotName, name).
		Set(KeyBotToken, token).
		Set(KeyBotSecret, secret).
		Set(KeyBotLastSeenMsgTime, nil).
		Set(KeyBotCalculationTrigger, nil).
		Set(KeyBotTipTrigger, nil).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot %s: %w", name, err)
	}
	return botFromRecord(r), nil
}

// UpdateBot sets the given fields of an existing bot.
func (a *API) UpdateBot(ctx context.Context, name string, fields map[string]any) (*BotModel, error) {
	b := a.db.Document(TypeBot).Update(name)
	for k, v := range fields {
		b.Set(k, v)
	}
	r, err := b.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update bot %s: %w", name, err)
	}
	return botFromRecord(r), nil
}

// ─────────────────────────────────────────────────────────────────
// Channels
// ─────────────────────────────────────────────────────────────────

func (a *API) FindChannel(ctx context.Context, name string) (*ChannelModel, error) {
	r, err := a.db.Document(TypeChannel).Find(ctx, name, KeyChannelName, KeyChannelID)
	if err != nil || r == nil {
		return nil, err
	}
	return &ChannelModel{Name: r.String(KeyChannelName), ID: r.Int64(KeyChannelID)}, nil
}

func (a *API) CreateChannel(ctx context.Context, name string, id int64) (*ChannelModel, error) {
	_, err := a.db.Document(TypeChannel).Create(name).
		Set(KeyChannelName, name).
		Set(KeyChannelID, id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel %s: %w", name, err)
	}
	return &ChannelModel{Name: name, ID: id}, nil
}

func (a *API) DeleteChannel(ctx context.Context, name string) (*ChannelModel, error) {
	r, err := a.db.Document(TypeChannel).Delete(ctx, name)
	if err != nil || r == nil {
		return nil, err
	}
	return &ChannelModel{Name: r.String(KeyChannelName), ID: r.Int64(KeyChannelID)}, nil
}

// ─────────────────────────────────────────────────────────────────
// Surveys and votes
// ─────────────────────────────────────────────────────────────────

func (a *API) CreateSurvey(ctx context.Context, s SurveyModel) (*SurveyModel, error) {
	r, err := a.db.Document(TypeSurvey).Create(s.ID).
		Set(KeySurveyQuestion, s.Question).
		Set(KeySurveyAnswers, s.Answers).
		Set(KeySurveyBot, s.Bot).
		Set(KeySurveyChannel, s.Channel).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}
	return surveyFromRecord(r), nil
}

func (a *API) FindSurvey(ctx context.Context, id string) (*SurveyModel, error) {
	r, err := a.db.Document(TypeSurvey).Find(ctx, id)
	if err != nil || r == nil {
		return nil, err
	}
	return surveyFromRecord(r), nil
}

// FindVoteAnswer returns the answer index chosen under id, or -1.
func (a *API) FindVoteAnswer(ctx context.Context, id string) (int64, error) {
	r, err := a.db.Document(TypeVoteAnswer).Find(ctx, id, KeyVoteAnswerIndex)
	if err != nil || r == nil {
		return -1, err
	}
	return r.Int64(KeyVoteAnswerIndex), nil
}

func (a *API) CreateVoteAnswer(ctx context.Context, id string, answer int64) error {
	_, err := a.db.Document(TypeVoteAnswer).Create(id).Set(KeyVoteAnswerIndex, answer).Exec(ctx)
	return err
}

func (a *API) UpdateVoteAnswer(ctx context.Context, id string, answer int64) error {
	_, err := a.db.Document(TypeVoteAnswer).Update(id).Set(KeyVoteAnswerIndex, answer).Exec(ctx)
	return err
}

// ─────────────────────────────────────────────────────────────────
// Metadata counters
// ─────────────────────────────────────────────────────────────────

// FindMetadata returns nil when the counter does not exist.
func (a *API) FindMetadata(ctx context.Context, label, key string) (*int64, error) {
	v, ok, err := a.db.Metadata().Find(ctx, label, key)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// CreateMetadata creates the counter unless it already exists.
func (a *API) CreateMetadata(ctx context.Context, label, key string, value int64) error {
	_, err := a.db.Metadata().Create(ctx, label, key, value)
	return err
}

func (a *API) UpdateMetadata(ctx context.Context, label, key string, value int64) error {
	return a.db.Metadata().Update(ctx, label, key, value)
}

// UpdateMetadataBy adds delta, creating the counter at delta when absent.
func (a *API) UpdateMetadataBy(ctx context.Context, label, key string, delta int64) (int64, error) {
	return a.db.Metadata().UpdateBy(ctx, label, key, delta)
}

// UpdateMetadataIfExists adds delta to an existing counter only.
func (a *API) UpdateMetadataIfExists(ctx context.Context, label, key string, delta int64) (bool, error) {
	return a.db.Metadata().UpdateIfExists(ctx, label, key, delta)
}

func (a *API) DeleteMetadata(ctx context.Context, label, key string) error {
	_, err := a.db.Metadata().Delete(ctx, label, key)
	return err
}

// NextID allocates the next value of a global id sequence, starting at 0.
func (a *API) NextID(ctx context.Context, sequence string) (int64, error) {
	n, err := a.UpdateMetadataBy(ctx, LabelMetadata, sequence, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", sequence, err)
	}
	return n - 1, nil
}

// ─────────────────────────────────────────────────────────────────
// Lists
// ─────────────────────────────────────────────────────────────────

// ListInsert appends value unless present.
func (a *API) ListInsert(ctx context.Context, listType, name, value string) error {
	_, err := a.db.List(listType, name).Insert(ctx, value)
	return err
}

func (a *API) ListRemove(ctx context.Context, listType, name, value string) error {
	_, err := a.db.List(listType, name).Remove(ctx, value)
	return err
}

func (a *API) ListContains(ctx context.Context, listType, name, value string) (bool, error) {
	return a.db.List(listType, name).Contains(ctx, value)
}

func (a *API) ListGet(ctx context.Context, listType, name string) ([]string, error) {
	return a.db.List(listType, name).Values(ctx)
}

// ─────────────────────────────────────────────────────────────────
// Trees
// ─────────────────────────────────────────────────────────────────

func (a *API) TreeInsert(ctx context.Context, treeType, name string, key db.TreeKey, value string) (bool, error) {
	return a.db.Tree(treeType, name).Insert(ctx, key, value)
}

func (a *API) TreeRemove(ctx context.Context, treeType, name string, key db.TreeKey) (bool, error) {
	return a.db.Tree(treeType, name).Delete(ctx, key)
}

func (a *API) TreeContains(ctx context.Context, treeType, name string, key db.TreeKey) (bool, error) {
	return a.db.Tree(treeType, name).Contains(ctx, key)
}

func (a *API) TreeSearch(ctx context.Context, treeType, name string, key db.TreeKey) (*string, error) {
	return a.db.Tree(treeType, name).Search(ctx, key)
}

// TreeGetAll lists the secondary component of every key, largest key first.
// Trees keyed by (-id, name) therefore list names in creation order.
func (a *API) TreeGetAll(ctx context.Context, treeType, name string) ([]string, error) {
	entries, err := a.db.Tree(treeType, name).Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key.Secondary)
	}
	slices.Reverse(out)
	return out, nil
}

func (a *API) TreeEntries(ctx context.Context, treeType, name string) ([]db.TreeEntry, error) {
	return a.db.Tree(treeType, name).Entries(ctx)
}

func (a *API) TreeGetMax(ctx context.Context, treeType, name string) (*db.TreeEntry, error) {
	return a.db.Tree(treeType, name).Max(ctx)
}

func (a *API) TreeClear(ctx context.Context, treeType, name string) error {
	return a.db.Tree(treeType, name).Clear(ctx)
}

// ─────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────

// EnsureChannel returns the bookkeeping of channel, allocating an id the
// first time the bot layer sees it.
func (a *API) EnsureChannel(ctx context.Context, name string) (*ChannelModel, error) {
	ch, err := a.FindChannel(ctx, name)
	if err != nil || ch != nil {
		return ch, err
	}
	id, err := a.NextID(ctx, KeyLastChannelID)
	if err != nil {
		return nil, err
	}
	ch, err = a.CreateChannel(ctx, name, id)
	if errors.Is(err, db.ErrAlreadyExists) {
		return a.FindChannel(ctx, name)
	}
	return ch, err
}

// MarkSeen records t as the bot's last seen message time when it is newer
// than the stored one. Ties keep the stored value.
func (a *API) MarkSeen(ctx context.Context, bot string, t time.Time) (bool, error) {
	m, err := a.FindBot(ctx, bot)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, fmt.Errorf("bot %s: %w", bot, ErrNoSuchEntity)
	}
	if m.LastSeen != nil && !t.After(*m.LastSeen) {
		return false, nil
	}
	_, err = a.UpdateBot(ctx, bot, map[string]any{KeyBotLastSeenMsgTime: t.UnixNano()})
	return err == nil, err
}
