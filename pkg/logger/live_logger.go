package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config for logger
type Config struct {
	Level   string // debug, info, warn, error
	Output  io.Writer
	Service string
	Pretty  bool // console writer for local development
}

var (
	base zerolog.Logger
	mu   sync.RWMutex
	once sync.Once
)

// ParseLevel parses a string level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a zerolog logger from cfg.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if cfg.Service == "" {
		cfg.Service = "live-engine"
	}
	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// Init sets the process logger. Later calls replace it.
func Init(cfg Config) zerolog.Logger {
	l := New(cfg)
	mu.Lock()
	base = l
	mu.Unlock()
	once.Do(func() {})
	return l
}

// Default returns the process logger, initializing it with defaults on first use.
func Default() zerolog.Logger {
	once.Do(func() {
		mu.Lock()
		base = New(Config{Level: "info"})
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Component returns a child of the process logger tagged with component=name.
func Component(name string) zerolog.Logger {
	l := Default()
	return l.With().Str("component", name).Logger()
}
