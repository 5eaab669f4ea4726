// Package debug provides a centralized, categorized logging system backed by zap.
//
// Categories gate the chatty Log output; Warn and Error are always emitted.
// Set DUOPANE_DEBUG=all, DUOPANE_DEBUG=none or DUOPANE_DEBUG=CACHE,NAV to
// override which categories are active. SetCategories applies per-category
// overrides on top.
package debug

import (
	"os"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a debug logging category
type Category string

const (
	// Core categories
	APP    Category = "APP"    // Application wiring, watcher loop, transfers
	FS     Category = "FS"     // Local filesystem listing
	REMOTE Category = "REMOTE" // Remote listing service, probe merging
	CACHE  Category = "CACHE"  // Cache hits, fetch dispatch, stale discards
	NAV    Category = "NAV"    // Pane transitions and selection
	DND    Category = "DND"    // Drop target registration and resolution
	STORE  Category = "STORE"  // Favorites store

	// Detailed subcategories (use sparingly - can be verbose)
	FS_ENTRY Category = "FS_ENTRY" // Individual entry processing (very verbose)
)

var (
	enabledCategories = map[Category]bool{
		APP:    true,
		FS:     true,
		REMOTE: true,
		CACHE:  true,
		NAV:    true,
		DND:    true,
		STORE:  true,
		// Verbose categories disabled by default
		FS_ENTRY: false,
	}
	categoryMu sync.RWMutex

	loggerMu sync.RWMutex
	logger   *zap.SugaredLogger
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	logger = newLogger("console")

	// Format: DUOPANE_DEBUG=CACHE,NAV or DUOPANE_DEBUG=all or DUOPANE_DEBUG=none
	if env := os.Getenv("DUOPANE_DEBUG"); env != "" {
		level.SetLevel(zapcore.DebugLevel)
		applyCategoryList(env)
	}
}

func applyCategoryList(env string) {
	categoryMu.Lock()
	defer categoryMu.Unlock()

	env = strings.ToUpper(strings.TrimSpace(env))
	switch env {
	case "ALL":
		for cat := range enabledCategories {
			enabledCategories[cat] = true
		}
	case "NONE":
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
	default:
		for cat := range enabledCategories {
			enabledCategories[cat] = false
		}
		for _, cat := range strings.Split(env, ",") {
			enabledCategories[Category(strings.TrimSpace(cat))] = true
		}
	}
}

func newLogger(format string) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar()
}

// Init configures the level ("debug", "info", "warn", "error") and the
// encoder ("console" or "json"). Unknown levels leave the current level.
func Init(lvl, format string) {
	if lvl != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(lvl)); err == nil {
			level.SetLevel(l)
		}
	}
	loggerMu.Lock()
	logger = newLogger(format)
	loggerMu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}

func current() *zap.SugaredLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	if !IsEnabled(cat) {
		return
	}
	current().With("cat", string(cat)).Debugf(format, args...)
}

// Warn logs a warning regardless of category enablement.
func Warn(cat Category, format string, args ...interface{}) {
	current().With("cat", string(cat)).Warnf(format, args...)
}

// Error logs an error regardless of category enablement.
func Error(cat Category, format string, args ...interface{}) {
	current().With("cat", string(cat)).Errorf(format, args...)
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// SetCategories sets the enabled state for multiple categories. Names are
// case-insensitive; categories not named keep their state.
func SetCategories(cats map[Category]bool) {
	categoryMu.Lock()
	for cat, enabled := range cats {
		enabledCategories[Category(strings.ToUpper(string(cat)))] = enabled
	}
	categoryMu.Unlock()
}

// ListEnabled returns a slice of currently enabled categories
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	slices.Sort(enabled)
	return enabled
}
