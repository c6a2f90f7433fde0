package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
	"github.com/MrSnakeDoc/coursebots/internal/sources/botfile"
)

// Applier converges bots towards a set of definitions
type Applier interface {
	Apply(ctx context.Context, defs []coursebot.Definition) error
}

// BotFileReloader periodically applies the bots file
type BotFileReloader struct {
	loader        *botfile.Loader
	mapper        *botfile.Mapper
	bots          Applier
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	mu         sync.Mutex
	digest     string
	lastReload time.Time
}

// NewBotFileReloader creates a new bots file reloader. A zero interval only
// reloads on the manual trigger.
func NewBotFileReloader(
	botsFile string,
	bots Applier,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *BotFileReloader {
	return &BotFileReloader{
		loader:        botfile.NewLoader(botsFile),
		mapper:        botfile.NewMapper(),
		bots:          bots,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start applies the file once, then keeps reloading in the background
func (br *BotFileReloader) Start(ctx context.Context) error {
	if err := br.Reload(ctx, false); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if br.interval > 0 {
		ticker = time.NewTicker(br.interval)
		tick = ticker.C
	}
	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := br.Reload(ctx, false); err != nil {
					br.logger.Error("failed to reload bots file",
						logger.Error(err))
				}
			case <-br.manualTrigger:
				br.logger.Info("manual reload triggered")
				if err := br.Reload(ctx, true); err != nil {
					br.logger.Error("failed to reload bots file",
						logger.Error(err))
				}
			case <-br.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (br *BotFileReloader) Stop() {
	br.stopOnce.Do(func() { close(br.stopCh) })
}

// Reload loads the bots file and applies it. Unless force is set, a file
// whose content did not change since the last successful reload is skipped.
func (br *BotFileReloader) Reload(ctx context.Context, force bool) error {
	config, err := br.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load bots: %w", err)
	}

	defs, err := br.mapper.MapBots(config)
	if err != nil {
		return fmt.Errorf("failed to map bots: %w", err)
	}

	digest := digestOf(defs)
	br.mu.Lock()
	unchanged := digest == br.digest
	br.mu.Unlock()
	if unchanged && !force {
		br.logger.Debug("bots file unchanged",
			logger.String("file", br.loader.Path()))
		return nil
	}

	br.logger.Info("applying bots file",
		logger.String("file", br.loader.Path()),
		logger.Int("count", len(defs)))

	if err := br.bots.Apply(ctx, defs); err != nil {
		return fmt.Errorf("failed to apply bots: %w", err)
	}

	br.mu.Lock()
	br.digest = digest
	br.lastReload = time.Now()
	br.mu.Unlock()
	return nil
}

// LastReload returns when the file was last applied successfully
func (br *BotFileReloader) LastReload() time.Time {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.lastReload
}

func digestOf(defs []coursebot.Definition) string {
	h := sha256.New()
	for _, d := range defs {
		fmt.Fprintf(h, "%q|%q|%s|%s|", d.Name, d.Channels, deref(d.CalculationTrigger), deref(d.TipTrigger))
		for _, c := range d.Counts {
			media := "-"
			if c.Media != nil {
				media = c.Media.String()
			}
			fmt.Fprintf(h, "%s|%s|%s;", deref(c.Channel), deref(c.Regex), media)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%q", *s)
}
