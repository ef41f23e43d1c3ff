package common

import (
	"context"
	"log/slog"
)

// maskingHandler wraps another slog.Handler and masks sensitive string
// attributes before they reach it. Text and JSON handlers get masking
// through this wrapper; the color handler masks on its own.
type maskingHandler struct {
	inner  slog.Handler
	masker *Masker
}

func newMaskingHandler(inner slog.Handler, masker *Masker) *maskingHandler {
	return &maskingHandler{inner: inner, masker: masker}
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.masker == nil || !h.masker.IsEnabled() {
		return h.inner.Handle(ctx, r)
	}
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.inner.Handle(ctx, nr)
}

func (h *maskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, h.masker.MaskValueForKey(a.Key, a.Value.String()))
	}
	return a
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.masker != nil && h.masker.IsEnabled() {
		masked := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			masked[i] = h.maskAttr(a)
		}
		attrs = masked
	}
	return newMaskingHandler(h.inner.WithAttrs(attrs), h.masker)
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return newMaskingHandler(h.inner.WithGroup(name), h.masker)
}
