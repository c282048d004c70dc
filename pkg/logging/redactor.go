package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// RedactedValue replaces any attribute value caught by the redactor.
const RedactedValue = "[REDACTED]"

// Attribute keys whose values are always replaced (case-insensitive).
var defaultSensitiveFields = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"credential":    true,
	"credentials":   true,
	"access_token":  true,
	"refresh_token": true,
	"private_key":   true,
	"bearer":        true,
	"session_id":    true,
}

// Patterns scrubbed out of string attribute values. Document arguments
// and query parameters flow into log attributes verbatim, so inline
// credentials have to be caught by value too, not just by key.
var defaultSensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[^\s"',}]+`),
	regexp.MustCompile(`(?i)secret["']?\s*[:=]\s*["']?[^\s"',}]+`),
	regexp.MustCompile(`(?i)api[_-]?key["']?\s*[:=]\s*["']?[a-zA-Z0-9\-_]+`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_\.]+`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9\-_]+\.eyJ[a-zA-Z0-9\-_]+\.[a-zA-Z0-9\-_]+`),
}

// Redactor decides which attribute keys and string values are
// sensitive. Safe for concurrent use.
type Redactor struct {
	sensitiveFields   map[string]bool
	sensitivePatterns []*regexp.Regexp
	allowlistFields   map[string]bool
	mu                sync.RWMutex
}

// NewRedactor creates a Redactor with the default field and pattern sets.
func NewRedactor() *Redactor {
	r := &Redactor{
		sensitiveFields:   make(map[string]bool, len(defaultSensitiveFields)),
		sensitivePatterns: make([]*regexp.Regexp, 0, len(defaultSensitivePatterns)),
		allowlistFields:   make(map[string]bool),
	}
	for k, v := range defaultSensitiveFields {
		r.sensitiveFields[k] = v
	}
	r.sensitivePatterns = append(r.sensitivePatterns, defaultSensitivePatterns...)
	return r
}

// AddSensitiveField adds a field name to the sensitive list.
func (r *Redactor) AddSensitiveField(field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitiveFields[strings.ToLower(field)] = true
}

// AddSensitivePattern compiles and adds a regex to the value scrubber.
func (r *Redactor) AddSensitivePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sensitivePatterns = append(r.sensitivePatterns, re)
	return nil
}

// AddAllowlistField exempts a field name from key-based redaction.
func (r *Redactor) AddAllowlistField(field string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowlistFields[strings.ToLower(field)] = true
}

// IsSensitiveField reports whether values under this key are replaced.
func (r *Redactor) IsSensitiveField(field string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(field)
	if r.allowlistFields[lower] {
		return false
	}
	return r.sensitiveFields[lower]
}

// RedactString scrubs every sensitive pattern match from s.
func (r *Redactor) RedactString(s string) string {
	r.mu.RLock()
	patterns := r.sensitivePatterns
	r.mu.RUnlock()

	result := s
	for _, pattern := range patterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactingHandler wraps a slog.Handler so every record's attributes
// pass through the redactor before being written.
type RedactingHandler struct {
	slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps handler. A nil redactor uses the defaults.
func NewRedactingHandler(handler slog.Handler, redactor *Redactor) *RedactingHandler {
	if redactor == nil {
		redactor = NewRedactor()
	}
	return &RedactingHandler{
		Handler:  handler,
		redactor: redactor,
	}
}

// Handle rewrites the record with redacted attributes.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.Handler.Handle(ctx, clean)
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if h.redactor.IsSensitiveField(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.RedactString(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		clean := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			clean[i] = h.redactAttr(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	default:
		return a
	}
}

// WithAttrs returns a new RedactingHandler with the given attributes,
// redacted on the way in.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &RedactingHandler{
		Handler:  h.Handler.WithAttrs(clean),
		redactor: h.redactor,
	}
}

// WithGroup returns a new RedactingHandler with the given group.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{
		Handler:  h.Handler.WithGroup(name),
		redactor: h.redactor,
	}
}
