package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Log is the process-wide logger. It is usable before Init is called.
var Log = slog.New(tint.NewHandler(os.Stderr, nil))

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the global logger. An empty level falls back to LOG_LEVEL;
// LOG_NO_COLOR=true disables ANSI colors.
func Init(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	InitWithWriter(os.Stderr, ParseLevel(level), os.Getenv("LOG_NO_COLOR") == "true")
}

func InitWithWriter(w io.Writer, level slog.Level, noColor bool) {
	Log = slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
	slog.SetDefault(Log)
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }
func Info(msg string, args ...any)  { Log.Info(msg, args...) }
func Warn(msg string, args ...any)  { Log.Warn(msg, args...) }
func Error(msg string, args ...any) { Log.Error(msg, args...) }
