package coursebot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/db"
)

// MostActiveUser returns the user who sent the most messages to channel
// since the bot joined it. nil when nobody spoke or the lead is shared.
func (b *Bot) MostActiveUser(ctx context.Context, channel string) (*string, error) {
	if err := b.requireMember(ctx, channel); err != nil {
		return nil, err
	}
	entries, err := b.api.TreeEntries(ctx, TreeActivity, scope(b.name, channel))
	if err != nil {
		return nil, err
	}
	return soleLeader(entries), nil
}

// RichestUser returns the channel member with the highest balance. nil when
// no tip happened yet or the top balance is shared.
func (b *Bot) RichestUser(ctx context.Context, channel string) (*string, error) {
	if err := b.requireMember(ctx, channel); err != nil {
		return nil, err
	}
	entries, err := b.api.TreeEntries(ctx, TreeTipLedger, scope(b.name, channel))
	if err != nil {
		return nil, err
	}
	return soleLeader(entries), nil
}

func soleLeader(entries []db.TreeEntry) *string {
	n := len(entries)
	if n == 0 {
		return nil
	}
	top := entries[n-1]
	if n > 1 && entries[n-2].Key.Primary == top.Key.Primary {
		return nil
	}
	user := top.Key.Secondary
	return &user
}

// RunSurvey asks question in channel and returns the survey id. Members vote
// by sending one of answers verbatim.
func (b *Bot) RunSurvey(ctx context.Context, channel, question string, answers []string) (string, error) {
	if len(answers) == 0 {
		return "", fmt.Errorf("survey without answers: %w", ErrInvalidArgument)
	}
	if err := b.requireMember(ctx, channel); err != nil {
		return "", err
	}

	n, err := b.api.NextID(ctx, KeyLastSurveyID)
	if err != nil {
		return "", err
	}
	id := strconv.FormatInt(n, 10)
	if _, err := b.api.CreateSurvey(ctx, SurveyModel{
		ID:       id,
		Question: question,
		Answers:  answers,
		Bot:      b.name,
		Channel:  channel,
	}); err != nil {
		return "", err
	}
	for i := range answers {
		if err := b.api.CreateMetadata(ctx, scope(LabelSurvey, id), strconv.Itoa(i), 0); err != nil {
			return "", err
		}
	}
	if err := b.api.ListInsert(ctx, ListChannelSurveys, scope(b.name, channel), id); err != nil {
		return "", err
	}

	msg, err := b.factory.Create(ctx, chat.MediaText, []byte(question))
	if err != nil {
		return "", fmt.Errorf("failed to create survey question: %w", err)
	}
	if err := b.app.ChannelSend(ctx, b.session(), channel, msg); err != nil {
		return "", fmt.Errorf("failed to ask survey question: %w", err)
	}
	return id, nil
}

// SurveyResults returns the vote count of every answer, in answer order.
// Only the bot that ran the survey can read it.
func (b *Bot) SurveyResults(ctx context.Context, id string) ([]int64, error) {
	s, err := b.api.FindSurvey(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Bot != b.name {
		return nil, fmt.Errorf("survey %q: %w", id, ErrNoSuchEntity)
	}
	out := make([]int64, len(s.Answers))
	for i := range s.Answers {
		v, err := b.api.FindMetadata(ctx, scope(LabelSurvey, id), strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}

// resetChannel zeroes channel scoped counters and drops the activity and
// tip ledgers and open surveys of channel.
func (b *Bot) resetChannel(ctx context.Context, channel string) error {
	b.ledger.Lock()
	defer b.ledger.Unlock()

	for _, r := range b.snapshot().rules {
		label := r.rule.label().InChannel(channel).Encode()
		v, err := b.api.FindMetadata(ctx, label, b.name)
		if err != nil {
			return err
		}
		if v != nil {
			if err := b.api.UpdateMetadata(ctx, label, b.name, 0); err != nil {
				return err
			}
		}
	}

	sc := scope(b.name, channel)
	for _, ledger := range []struct{ tree, label string }{
		{TreeActivity, LabelActivity},
		{TreeTipLedger, LabelTips},
	} {
		entries, err := b.api.TreeEntries(ctx, ledger.tree, sc)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := b.api.DeleteMetadata(ctx, scope(ledger.label, sc), e.Key.Secondary); err != nil {
				return err
			}
		}
		if err := b.api.TreeClear(ctx, ledger.tree, sc); err != nil {
			return err
		}
	}

	ids, err := b.api.ListGet(ctx, ListChannelSurveys, sc)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := b.api.ListRemove(ctx, ListChannelSurveys, sc, id); err != nil {
			return err
		}
	}
	return nil
}
