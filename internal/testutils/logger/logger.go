package logger

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/resmeter/resmeter/logger"
)

/*
New returns logger for test "t" with level set by the RM_TEST_LOG_LEVEL
environment variable (Debug by default). Output goes to the test log so it
is only shown for failed tests or when running with -v.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, envLevel(slog.LevelDebug))
}

// NewLvl returns logger for test "t" which logs messages of level "level" and above.
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	h := slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(logger.Module(t.Name()))
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return logger.NOP()
}

func envLevel(def slog.Level) slog.Level {
	var lvl slog.Level
	if v := os.Getenv("RM_TEST_LOG_LEVEL"); v != "" {
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return def
}

type testLogWriter struct {
	t testing.TB
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
