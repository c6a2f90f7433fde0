package deps

import (
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
	"github.com/MrSnakeDoc/coursebots/internal/logger"
	"github.com/MrSnakeDoc/coursebots/internal/store"
)

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS  []string         // IPs allowed to access /reload and /infra
	TrustProxy    bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	APIRateLimit  int              // requests per minute per client on /api, 0 = unlimited
	Bots          *coursebot.Bots  // bot registry served under /api/bots
	Store         store.Store      // backing key value store, pinged by /readyz
	StoreKind     string           // "memory" | "redis" | "bolt"
	BotsFile      string           // Path to the bot definitions file, empty when disabled
	ReloadTrigger chan struct{}    // Channel to trigger a manual bots file reload (nil if disabled)
	LastReload    func() time.Time // last successful bots file reload, nil if disabled
}

// Now returns the current time from TimeNow or the wall clock.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
