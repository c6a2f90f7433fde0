package coursebot

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

// Definition describes the wanted state of one bot.
type Definition struct {
	Name               string
	Channels           []string
	CalculationTrigger *string
	TipTrigger         *string
	Counts             []CountDefinition
}

// CountDefinition is a BeginCount call. A nil Channel counts globally.
type CountDefinition struct {
	Channel *string
	Regex   *string
	Media   *chat.MediaType
}

// Apply converges bots towards defs. It only adds: joins missing channels,
// sets triggers that differ and starts counts that are not running yet, so
// applying the same definitions twice changes nothing.
func (bs *Bots) Apply(ctx context.Context, defs []Definition) error {
	var errs []error
	for _, d := range defs {
		if err := bs.apply(ctx, d); err != nil {
			bs.logger.Warn("failed to apply bot definition",
				logger.String("bot", d.Name),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (bs *Bots) apply(ctx context.Context, d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("bot definition without name: %w", ErrInvalidArgument)
	}
	name := d.Name
	b, err := bs.Bot(ctx, &name)
	if err != nil {
		return err
	}

	joined, err := b.Channels(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(joined))
	for _, ch := range joined {
		have[ch] = true
	}
	for _, ch := range d.Channels {
		if have[ch] {
			continue
		}
		if err := b.Join(ctx, ch); err != nil {
			return err
		}
	}

	for kind, want := range map[TriggerKind]*string{
		TriggerCalculation: d.CalculationTrigger,
		TriggerTip:         d.TipTrigger,
	} {
		if want == nil || sameString(b.Trigger(kind), want) {
			continue
		}
		if _, err := b.SetTrigger(ctx, kind, want); err != nil {
			return err
		}
	}

	for _, c := range d.Counts {
		if b.Counting(c.Regex, c.Media) {
			continue
		}
		if err := b.BeginCount(ctx, c.Channel, c.Regex, c.Media); err != nil {
			return err
		}
	}
	return nil
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
