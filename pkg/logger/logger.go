package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const LevelCritical = slog.Level(12)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
	Critical(message string, args ...any)
	BusinessError(message string, err error, args ...any)
	InternalError(message string, err error, args ...any)
	With(args ...any) Logger
}

// Settings selects level and output format. Service, when set, is attached to
// every record so server and TUI logs can share a sink.
type Settings struct {
	Level   slog.Level
	Format  Format
	Service string
}

var levelNames = map[string]slog.Level{
	"debug":    slog.LevelDebug,
	"info":     slog.LevelInfo,
	"warn":     slog.LevelWarn,
	"warning":  slog.LevelWarn,
	"error":    slog.LevelError,
	"critical": LevelCritical,
	"fatal":    LevelCritical,
}

// SettingsFromEnv reads ENV, LOG_LEVEL and LOG_FORMAT. Development defaults
// to debug, anything else to info; unknown values fall back to the default.
func SettingsFromEnv(service string) Settings {
	return Settings{
		Level:   parseLevel(os.Getenv("LOG_LEVEL"), normalize(os.Getenv("ENV"))),
		Format:  parseFormat(os.Getenv("LOG_FORMAT")),
		Service: service,
	}
}

func NewFromEnv(service string) Logger {
	return New(os.Stdout, SettingsFromEnv(service))
}

// NewFile appends to the file at path. The returned closer must be closed on exit.
func NewFile(path, service string) (Logger, io.Closer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(file, SettingsFromEnv(service)), file, nil
}

func NewDiscard() Logger {
	return New(io.Discard, Settings{Level: slog.LevelError, Format: FormatText})
}

func New(output io.Writer, settings Settings) Logger {
	options := &slog.HandlerOptions{
		Level:       settings.Level,
		ReplaceAttr: renameCritical,
	}

	var handler slog.Handler = slog.NewJSONHandler(output, options)
	if settings.Format == FormatText {
		handler = slog.NewTextHandler(output, options)
	}

	base := slog.New(handler)
	if settings.Service != "" {
		base = base.With("service", settings.Service)
	}
	return &slogLogger{base: base}
}

type slogLogger struct {
	base *slog.Logger
}

func (l *slogLogger) Debug(message string, args ...any) {
	l.base.Debug(message, args...)
}

func (l *slogLogger) Info(message string, args ...any) {
	l.base.Info(message, args...)
}

func (l *slogLogger) Warn(message string, args ...any) {
	l.base.Warn(message, args...)
}

func (l *slogLogger) Error(message string, args ...any) {
	l.base.Error(message, args...)
}

func (l *slogLogger) Critical(message string, args ...any) {
	l.base.Log(context.Background(), LevelCritical, message, args...)
}

// BusinessError is for rejected input and missing records: WARN, error_kind=business.
func (l *slogLogger) BusinessError(message string, err error, args ...any) {
	l.logError(slog.LevelWarn, "business", message, err, args)
}

func (l *slogLogger) InternalError(message string, err error, args ...any) {
	l.logError(slog.LevelError, "internal", message, err, args)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{base: l.base.With(args...)}
}

func (l *slogLogger) logError(level slog.Level, kind, message string, err error, args []any) {
	if err == nil {
		return
	}
	attrs := make([]any, 0, len(args)+4)
	attrs = append(attrs, "err", err, "error_kind", kind)
	attrs = append(attrs, args...)
	l.base.Log(context.Background(), level, message, attrs...)
}

func parseLevel(value, env string) slog.Level {
	if level, ok := levelNames[normalize(value)]; ok && normalize(value) != "info" {
		return level
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func parseFormat(value string) Format {
	if Format(normalize(value)) == FormatText {
		return FormatText
	}
	return FormatJSON
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func renameCritical(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key != slog.LevelKey {
		return attr
	}
	if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelCritical {
		attr.Value = slog.StringValue("CRITICAL")
	}
	return attr
}
