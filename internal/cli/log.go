// Package cli implements the ancsummary command-line interface.
//
// The commands read a summary tree and a sampler log, summarize the samples
// onto the tree through the shared pipeline, and write the annotated tree,
// rendered figures or transition tables. The CLI is built using cobra and
// logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - states: ancestral state summaries (MAP or posterior mean)
//   - charmap: MAP character histories from stochastic character maps
//   - transitions: a table of sampled state changes
//   - render: draw an already annotated tree
//   - serve: run the HTTP API
//   - cache, runs: inspect the result cache and the run archive
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
//
// # Configuration
//
// Defaults are read from a TOML file (see [Config]); flags given on the
// command line override them.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// stopwatch logs completion of an operation with its elapsed duration.
type stopwatch struct {
	logger *log.Logger
	start  time.Time
}

func newStopwatch(l *log.Logger) *stopwatch {
	return &stopwatch{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Summarized 41 nodes (1.234s)".
func (s *stopwatch) done(msg string) {
	s.logger.Infof("%s (%s)", msg, time.Since(s.start).Round(time.Millisecond))
}
