package utils

import (
	"context"
	"errors"
	"log/slog"
)

// MultiLogHandler fans a record out to every wrapped slog handler. The
// daemon uses it to write the same stream to the console and the log file
// with different formats.
type MultiLogHandler struct {
	targets []slog.Handler
}

var _ slog.Handler = (*MultiLogHandler)(nil)

func NewMultiLogHandler(targets ...slog.Handler) *MultiLogHandler {
	return &MultiLogHandler{targets: targets}
}

// Enabled reports true when at least one target wants the level.
func (m *MultiLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, t := range m.targets {
		if t.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled target. A failing target does
// not stop delivery to the others.
func (m *MultiLogHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, t := range m.targets {
		if !t.Enabled(ctx, rec.Level) {
			continue
		}
		if err := t.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.apply(func(t slog.Handler) slog.Handler { return t.WithAttrs(attrs) })
}

func (m *MultiLogHandler) WithGroup(name string) slog.Handler {
	return m.apply(func(t slog.Handler) slog.Handler { return t.WithGroup(name) })
}

func (m *MultiLogHandler) apply(fn func(slog.Handler) slog.Handler) *MultiLogHandler {
	next := make([]slog.Handler, len(m.targets))
	for i, t := range m.targets {
		next[i] = fn(t)
	}
	return &MultiLogHandler{targets: next}
}
