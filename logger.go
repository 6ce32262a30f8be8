package cubegen

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

var (
	hooksMu     sync.Mutex
	loggerHooks []func(*slog.Logger)
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for cubegen and its sub-packages.
// By default, cubegen produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by cubegen:
//   - [slog.LevelDebug]: dispatch sizes, bindings, buffer sizes
//   - [slog.LevelInfo]: device selected, faces written
//   - [slog.LevelWarn]: cleanup failures, backends that did not initialize
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	hooksMu.Lock()
	hooks := slices.Clone(loggerHooks)
	hooksMu.Unlock()
	for _, h := range hooks {
		h(l)
	}
}

// Logger returns the current logger used by cubegen.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// RegisterLoggerHook registers fn to receive the logger now and on every
// later SetLogger call. Backends use it to share the logger without an
// import cycle.
func RegisterLoggerHook(fn func(*slog.Logger)) {
	hooksMu.Lock()
	loggerHooks = append(loggerHooks, fn)
	hooksMu.Unlock()
	fn(Logger())
}
