package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	std  *slog.Logger
	once sync.Once
)

// Init configures the process logger. Safe to call more than once; only the
// first call wins.
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch strings.ToLower(level) {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}
		std = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	})
}

func get() *slog.Logger {
	if std == nil {
		Init("info")
	}
	return std
}

func Debug(msg string, args ...any) {
	get().Debug(msg, normalize(args)...)
}

func Info(msg string, args ...any) {
	get().Info(msg, normalize(args)...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, normalize(args)...)
}

func Error(msg string, args ...any) {
	get().Error(msg, normalize(args)...)
}

// normalize lets callers pass a bare error (or any odd trailing value)
// without a key: logger.Error("Service:Op:Error", err).
func normalize(args []any) []any {
	if len(args)%2 == 0 {
		return args
	}
	if len(args) == 1 {
		if err, ok := args[0].(error); ok {
			return []any{"error", err}
		}
	}
	return append(args[:len(args)-1:len(args)-1], "detail", args[len(args)-1])
}
