package utils

import (
	"io"

	"github.com/MrSnakeDoc/coursebots/internal/logger"
)

// MustClose closes c and logs any error under what.
// Use for shutdown paths where a failed close is worth a line but not an abort.
func MustClose(c io.Closer, what string, log logger.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("what", what), logger.Error(err))
		return
	}
	log.Debug("closed", logger.String("what", what))
}
