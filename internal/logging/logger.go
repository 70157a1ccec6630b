// Package logging builds the component loggers used across chainstate.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LevelEnv overrides the configured level when set.
const LevelEnv = "CHAINSTATE_LOG_LEVEL"

// Config controls level and output format.
type Config struct {
	// Level is the minimum level to output (debug, info, warn, error).
	Level string `yaml:"level" toml:"level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format" toml:"format"`
	// ReportCaller adds file, line and function to each entry.
	ReportCaller bool `yaml:"report_caller" toml:"report_caller"`
}

var (
	mu      sync.Mutex
	cfg     Config
	out     io.Writer = os.Stderr
	loggers           = make(map[string]*logrus.Entry)
)

// Configure sets the configuration used by loggers created afterwards. Loggers
// handed out earlier are reconfigured in place.
func Configure(c Config, w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
	if w != nil {
		out = w
	}
	for _, entry := range loggers {
		apply(entry.Logger)
	}
}

// New returns the logger for component, creating it on first use. Entries
// carry a "component" field.
func New(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	if entry, ok := loggers[component]; ok {
		return entry
	}
	logger := logrus.New()
	apply(logger)
	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *logrus.Entry) *logrus.Entry {
	if l == nil {
		return Discard()
	}
	return l
}

// apply must be called with mu held.
func apply(logger *logrus.Logger) {
	levelStr := "info"
	if env := os.Getenv(LevelEnv); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.ReportCaller)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.SetOutput(out)
}
