// Package version holds build metadata, set with -ldflags "-X" at link time.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().UTC().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// String renders the full build line logged at startup.
func String() string {
	return fmt.Sprintf("coursebots %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
