package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	// levelNone is used to disable logging
	levelNone slog.Level = math.MaxInt32
)

/*
LogConfiguration describes the logger configuration, it is loaded from the
logger configuration yaml file and then overridden by the command line flags.
*/
type LogConfiguration struct {
	// one of "trace", "debug", "info", "warn", "error" or "none"
	Level string `yaml:"defaultLevel"`
	// one of "text", "json", "console", "ecs" or "cli"
	Format string `yaml:"format"`
	// file name or one of the special values "stdout", "stderr", "discard"
	OutputPath string `yaml:"outputPath"`
	// Go time format layout or "none" to drop the timestamp
	TimeFormat string `yaml:"timeFormat"`
	ShowSource bool   `yaml:"showSource"`

	// when set it is used as output instead of OutputPath
	writer io.Writer
}

/*
New creates logger based on configuration "cfg". Nil configuration means
"defaults" ie INFO level text logger writing to stderr.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	out, err := cfg.initWriter()
	if err != nil {
		return nil, fmt.Errorf("creating log writer: %w", err)
	}
	h, err := cfg.handler(out)
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

// NOP returns logger which discards everything.
func NOP() *slog.Logger {
	return slog.New(discardHandler{})
}

func (cfg *LogConfiguration) logLevel() slog.Level {
	if strings.EqualFold(cfg.OutputPath, "discard") || cfg.OutputPath == os.DevNull {
		return levelNone
	}

	switch strings.ToLower(cfg.Level) {
	case "":
		return slog.LevelInfo
	case "trace":
		return LevelTrace
	case "none":
		return levelNone
	case "warning":
		return slog.LevelWarn
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (cfg *LogConfiguration) initWriter() (io.Writer, error) {
	if cfg.writer != nil {
		return cfg.writer, nil
	}
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0700); err != nil {
		return nil, fmt.Errorf("creating directory for log file: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(cfg.OutputPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func (cfg *LogConfiguration) handler(out io.Writer) (slog.Handler, error) {
	opt := &slog.HandlerOptions{
		Level:     cfg.logLevel(),
		AddSource: cfg.ShowSource,
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opt.ReplaceAttr = chainFormatters(timeFormatter(cfg.TimeFormat), formatLevel)
		return slog.NewTextHandler(out, opt), nil
	case "json":
		opt.ReplaceAttr = chainFormatters(timeFormatter(cfg.TimeFormat), formatLevel)
		return slog.NewJSONHandler(out, opt), nil
	case "ecs":
		opt.ReplaceAttr = chainFormatters(timeFormatter(cfg.TimeFormat), formatECS)
		return slog.NewJSONHandler(out, opt), nil
	case "console":
		timeFmt := cfg.TimeFormat
		if timeFmt == "" {
			timeFmt = "15:04:05.0000"
		}
		opt.ReplaceAttr = chainFormatters(timeFormatter(timeFmt), formatConsole, formatDataJSON)
		return slog.NewJSONHandler(zerolog.ConsoleWriter{Out: out, TimeFormat: timeFmt, NoColor: !isTerminal(out)}, opt), nil
	case "cli":
		opt.ReplaceAttr = formatCLI
		return slog.NewTextHandler(out, opt), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
