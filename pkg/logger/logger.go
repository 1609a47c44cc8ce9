package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FormatConsole switches output to zerolog's human-readable writer.
const FormatConsole = "console"

const redacted = "[REDACTED]"

// Field names whose values never reach the log sink.
var sensitiveFields = map[string]struct{}{
	"authorization":    {},
	"api_key":          {},
	"client_secret":    {},
	"password":         {},
	"stripe_signature": {},
	"token":            {},
}

// Options configures the structured logger. Format is "json" unless set to
// FormatConsole.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger writes structured entries. Request and event scoped fields ride on
// the context so every line for one offer or webhook carries them.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(out).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Logger{root: root, warnStack: opts.WarnStack}
}

// ParseLevel maps a config string to a level, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return scoped
		}
	}
	return l.root
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

// WithFields attaches fields in key order. Sensitive keys are masked.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder := l.from(ctx).With()
	for _, key := range keys {
		value := fields[key]
		if _, secret := sensitiveFields[strings.ToLower(key)]; secret {
			value = redacted
		}
		builder = builder.Interface(key, value)
	}
	return context.WithValue(ctx, ctxKey{}, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithOfferID(ctx context.Context, offerID string) context.Context {
	return l.WithField(ctx, "offer_id", offerID)
}

// WithEventID tags log lines emitted while processing a gateway or outbox event.
func (l *Logger) WithEventID(ctx context.Context, eventID string) context.Context {
	return l.WithField(ctx, "event_id", eventID)
}

func (l *Logger) WithPaymentReference(ctx context.Context, ref string) context.Context {
	return l.WithField(ctx, "payment_reference", ref)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	logger := l.from(ctx)
	logger.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	logger := l.from(ctx)
	logger.Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	logger := l.from(ctx)
	event := logger.Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always records the stack; err may be nil for conditions without one.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	logger := l.from(ctx)
	event := logger.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
