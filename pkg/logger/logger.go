// Package logger builds component-scoped zerolog loggers.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	out io.Writer = os.Stdout
	env           = strings.ToLower(os.Getenv("APP_ENV"))
)

// Init sets the global level and output format. env "dev" selects the
// human-readable console writer; anything else emits JSON.
func Init(level, appEnv string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	mu.Lock()
	env = strings.ToLower(appEnv)
	mu.Unlock()
}

// SetOutput redirects every logger created afterwards. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// New returns a logger tagged with the given component.
func New(component string) zerolog.Logger {
	mu.RLock()
	w, e := out, env
	mu.RUnlock()

	if e == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}
