package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

var (
	mu     sync.RWMutex
	global = New("info")
)

// New builds a JSON logger writing to stdout at the given level.
func New(level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// L returns the process logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := global
	return &l
}

func Set(l zerolog.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	mu.Lock()
	global = global.Level(lvl)
	mu.Unlock()
}

// WithSession stores a session scoped logger on ctx.
func WithSession(ctx context.Context, sessionID, symbol string) context.Context {
	l := L().With().Str("session_id", sessionID).Str("symbol", symbol).Logger()
	return context.WithValue(ctx, ctxKey{}, l)
}

// Ctx returns the logger attached to ctx, falling back to the process logger,
// with trace ids attached when a span is active.
func Ctx(ctx context.Context) *zerolog.Logger {
	var l zerolog.Logger
	if v, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		l = v
	} else {
		l = *L()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String()).Logger()
	}
	return &l
}
