// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. JSON output is meant for log shippers,
// the console writer for terminals.
func Setup(level string, jsonOutput bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return fmt.Errorf("invalid log level %q, use: debug, info, warn, error", level)
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if !jsonOutput {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}
