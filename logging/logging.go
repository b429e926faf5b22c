// Package logging wires up the subsystem loggers shared across the monitor
// packages, the same way lightninglib's daemon/log.go wires up one
// sub-logger per package off a single rotating backend.
package logging

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements io.Writer and writes to both stdout and the active
// log rotator, mirroring build.LogWriter in the teacher daemon.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.rotator != nil {
		w.rotator.Write(p)
	}
	return len(p), nil
}

var (
	writer  = &logWriter{}
	backend = btclog.NewBackend(writer)
)

// InitLogRotator initializes the rotating file logger. It must be called
// before any subsystem logger produced by NewSubLogger is used for
// anything beyond stdout output.
func InitLogRotator(logFile string, maxRolls int) error {
	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return err
	}
	writer.rotator = r
	return nil
}

// NewSubLogger returns a logger tagged with subsystemTag, backed by the
// shared rotating backend.
func NewSubLogger(subsystemTag string) btclog.Logger {
	return backend.Logger(subsystemTag)
}

// SetLogWriters lets tests or embedders redirect output (e.g. to
// io.Discard) without going through the file rotator.
func SetLogWriters(w io.Writer) {
	backend = btclog.NewBackend(w)
}
