package coursebot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/db"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

func tipPattern(trigger string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(trigger) + ` (\d+) (\S+)$`)
}

type handlerState struct {
	token    string
	patterns [triggerKinds]*regexp.Regexp
	rules    []compiledRule
}

func (b *Bot) snapshot() handlerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := handlerState{token: b.token, patterns: b.patterns}
	st.rules = make([]compiledRule, 0, len(b.rules))
	for _, r := range b.rules {
		st.rules = append(st.rules, r)
	}
	return st
}

// handle is the bot's single chat listener. Private messages are ignored.
func (b *Bot) handle(ctx context.Context, source string, msg chat.Message) error {
	channel, sender, ok := chat.SplitSource(source)
	if !ok {
		return nil
	}
	st := b.snapshot()

	if err := b.record(ctx, st, channel, sender, msg); err != nil {
		return err
	}
	if sender == b.name {
		return nil
	}
	if re := st.patterns[TriggerCalculation]; re != nil {
		if m := re.FindSubmatch(msg.Contents); m != nil {
			return b.reply(ctx, st.token, channel, string(m[1]))
		}
	}
	return nil
}

// record updates every statistic the message contributes to.
func (b *Bot) record(ctx context.Context, st handlerState, channel, sender string, msg chat.Message) error {
	b.ledger.Lock()
	defer b.ledger.Unlock()

	if _, err := b.api.MarkSeen(ctx, b.name, msg.Created); err != nil {
		return fmt.Errorf("failed to record last seen: %w", err)
	}
	for _, r := range st.rules {
		if !r.matches(msg) {
			continue
		}
		label := r.rule.label()
		if _, err := b.api.UpdateMetadataIfExists(ctx, label.Encode(), b.name, 1); err != nil {
			return err
		}
		if _, err := b.api.UpdateMetadataIfExists(ctx, label.InChannel(channel).Encode(), b.name, 1); err != nil {
			return err
		}
	}
	if sender == b.name {
		return nil
	}
	if err := b.countActivity(ctx, channel, sender); err != nil {
		return err
	}
	if re := st.patterns[TriggerTip]; re != nil {
		if m := re.FindSubmatch(msg.Contents); m != nil {
			if err := b.tip(ctx, st.token, channel, sender, string(m[2]), string(m[1])); err != nil {
				return err
			}
		}
	}
	return b.vote(ctx, channel, sender, string(msg.Contents))
}

func (b *Bot) reply(ctx context.Context, token, channel, expr string) error {
	result, err := evaluate(expr)
	if err != nil {
		b.logger.Debug("calculation skipped",
			logger.String("channel", channel),
			logger.Error(err))
		return nil
	}
	msg, err := b.factory.Create(ctx, chat.MediaText, []byte(result))
	if err != nil {
		return fmt.Errorf("failed to create reply: %w", err)
	}
	if err := b.app.ChannelSend(ctx, token, channel, msg); err != nil {
		return fmt.Errorf("failed to send reply to %s: %w", channel, err)
	}
	return nil
}

// countActivity moves sender one step up the channel's activity tree.
func (b *Bot) countActivity(ctx context.Context, channel, sender string) error {
	sc := scope(b.name, channel)
	n, err := b.api.UpdateMetadataBy(ctx, scope(LabelActivity, sc), sender, 1)
	if err != nil {
		return err
	}
	if _, err := b.api.TreeRemove(ctx, TreeActivity, sc, db.TreeKey{Primary: n - 1, Secondary: sender}); err != nil {
		return err
	}
	_, err = b.api.TreeInsert(ctx, TreeActivity, sc, db.TreeKey{Primary: n, Secondary: sender}, sender)
	return err
}

// tip moves amount from sender to target when both are channel members and
// sender can afford it. Anything else is silently ignored.
func (b *Bot) tip(ctx context.Context, token, channel, sender, target, amountText string) error {
	amount, err := strconv.ParseInt(amountText, 10, 64)
	if err != nil || amount <= 0 || target == sender {
		return nil
	}
	in, err := b.app.IsUserInChannel(ctx, token, channel, target)
	if err != nil || !in {
		return nil
	}

	sc := scope(b.name, channel)
	from, err := b.balance(ctx, sc, sender)
	if err != nil {
		return err
	}
	if from < amount {
		return nil
	}
	to, err := b.balance(ctx, sc, target)
	if err != nil {
		return err
	}
	if err := b.setBalance(ctx, sc, sender, from, from-amount); err != nil {
		return err
	}
	if err := b.setBalance(ctx, sc, target, to, to+amount); err != nil {
		return err
	}
	b.logger.Debug("tip",
		logger.String("channel", channel),
		logger.String("from", sender),
		logger.String("to", target),
		logger.Int64("amount", amount))
	return nil
}

func (b *Bot) balance(ctx context.Context, sc, user string) (int64, error) {
	v, err := b.api.FindMetadata(ctx, scope(LabelTips, sc), user)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return InitialBalance, nil
	}
	return *v, nil
}

func (b *Bot) setBalance(ctx context.Context, sc, user string, old, next int64) error {
	if err := b.api.UpdateMetadata(ctx, scope(LabelTips, sc), user, next); err != nil {
		return err
	}
	if _, err := b.api.TreeRemove(ctx, TreeTipLedger, sc, db.TreeKey{Primary: old, Secondary: user}); err != nil {
		return err
	}
	_, err := b.api.TreeInsert(ctx, TreeTipLedger, sc, db.TreeKey{Primary: next, Secondary: user}, user)
	return err
}

// vote registers contents as sender's answer to every open survey of the
// channel whose answers contain it. A later vote replaces the earlier one.
func (b *Bot) vote(ctx context.Context, channel, sender, contents string) error {
	ids, err := b.api.ListGet(ctx, ListChannelSurveys, scope(b.name, channel))
	if err != nil || len(ids) == 0 {
		return err
	}
	for _, id := range ids {
		s, err := b.api.FindSurvey(ctx, id)
		if err != nil {
			return err
		}
		if s == nil {
			continue
		}
		choice := int64(-1)
		for i, a := range s.Answers {
			if a == contents {
				choice = int64(i)
				break
			}
		}
		if choice < 0 {
			continue
		}

		voteID := scope(id, sender)
		prev, err := b.api.FindVoteAnswer(ctx, voteID)
		if err != nil {
			return err
		}
		switch {
		case prev == choice:
			continue
		case prev < 0:
			err = b.api.CreateVoteAnswer(ctx, voteID, choice)
		default:
			if _, err = b.api.UpdateMetadataBy(ctx, scope(LabelSurvey, id), strconv.FormatInt(prev, 10), -1); err == nil {
				err = b.api.UpdateVoteAnswer(ctx, voteID, choice)
			}
		}
		if err != nil {
			return fmt.Errorf("failed to record vote on %s: %w", id, err)
		}
		if _, err := b.api.UpdateMetadataBy(ctx, scope(LabelSurvey, id), strconv.FormatInt(choice, 10), 1); err != nil {
			return err
		}
	}
	return nil
}
