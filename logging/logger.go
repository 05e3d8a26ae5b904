// Package logging provides per-component logrus loggers configured from the
// "logging" section of presence.yml and PRESENCE_LOG_* variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/presence/config"
	"github.com/grovetools/presence/pkg/paths"
)

const (
	LevelEnv  = "PRESENCE_LOG_LEVEL"
	CallerEnv = "PRESENCE_LOG_CALLER"
	DebugEnv  = "PRESENCE_DEBUG"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	stderrOverride string
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, _, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}
	if stderrOverride != "" {
		logCfg.Format.StructuredToStderr = stderrOverride
	}

	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	entry := newLogger(component, logCfg, GetGlobalOutput(), interactive)
	loggers[component] = entry
	return entry
}

// SetStderrMode overrides logging.format.structured_to_stderr for loggers
// created afterwards. The daemon uses "always" so a foreground run shows its logs.
func SetStderrMode(mode string) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	stderrOverride = mode
}

// newLogger builds a logger from cfg. stderr is the console sink, used
// according to the stderr mode and whether the console is interactive.
func newLogger(component string, cfg Config, stderr io.Writer, interactive bool) *logrus.Entry {
	logger := logrus.New()

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

	if os.Getenv(CallerEnv) == "true" || cfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch cfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: cfg.Format})
	}

	var writers []io.Writer

	if cfg.File.Enabled {
		path := paths.ExpandHome(cfg.File.Path)
		if path == "" {
			path = filepath.Join(paths.StateDir(), "logs",
				fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		} else if file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err != nil {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		} else {
			writers = append(writers, file)
		}
	}

	if shouldLogToStderr(cfg.Format.StructuredToStderr, level, interactive) {
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// shouldLogToStderr decides the console sink. In "auto" mode logs reach an
// interactive terminal only at debug level, so they don't clutter CLI output.
func shouldLogToStderr(mode string, level logrus.Level, interactive bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv(DebugEnv) == "1" || level >= logrus.DebugLevel
	return isDebug || !interactive
}
