package telemetry

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
)

const redacted = "***REDACTED***"

// Redactor masks a fixed set of credentials. It is built once from the
// configuration and is immutable, so handlers derived with With share it
// freely.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor returns a Redactor for secrets, or nil when there is nothing
// to mask. Empty values are ignored.
func NewRedactor(secrets []string) *Redactor {
	set := slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(set) == 0 {
		return nil
	}
	// Longest first, so a key that contains another key is masked whole.
	slices.SortFunc(set, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	set = slices.Compact(set)

	pairs := make([]string, 0, 2*len(set))
	for _, s := range set {
		pairs = append(pairs, s, redacted)
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// String masks every secret in s. A nil Redactor returns s unchanged.
func (r *Redactor) String(s string) string {
	if r == nil {
		return s
	}
	return r.replacer.Replace(s)
}

// Handler wraps inner so messages, string attributes, nested groups and
// logged errors are masked before they are written.
func (r *Redactor) Handler(inner slog.Handler) slog.Handler {
	if r == nil {
		return inner
	}
	return &redactHandler{inner: inner, r: r}
}

type redactHandler struct {
	inner slog.Handler
	r     *Redactor
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.r.String(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.attr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs masks attrs up front; they are rendered by the inner handler
// from then on.
func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.attr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(masked), r: h.r}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name), r: h.r}
}

func (h *redactHandler) attr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.r.String(v.String()))
	case slog.KindGroup:
		group := v.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = h.attr(g)
		}
		return slog.Group(a.Key, masked...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, h.r.String(err.Error()))
		}
	}
	return a
}
