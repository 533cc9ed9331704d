// Package audit defines the fire-and-forget audit sink consumed by the
// security use-cases. Sink failures must never fail or roll back an
// otherwise-successful operation, so implementations swallow their own
// errors.
package audit

import (
	"context"

	"github.com/wardenauth/warden/pkg/slogx"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

// Event is one security-relevant occurrence.
type Event struct {
	Severity Severity
	Category string // e.g. "login", "refresh", "2fa"
	Message  string
	UserID   string // optional
}

// Sink accepts audit events. Emit never returns an error; delivery is
// best effort by contract.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SlogSink writes audit events to the request-scoped structured logger.
type SlogSink struct{}

func NewSlogSink() *SlogSink { return &SlogSink{} }

func (s *SlogSink) Emit(ctx context.Context, e Event) {
	log := slogx.FromContext(ctx)

	attrs := []any{
		"audit", true,
		"category", e.Category,
	}
	if e.UserID != "" {
		attrs = append(attrs, "user_id", e.UserID)
	}

	switch e.Severity {
	case SeverityAlert:
		log.Error(e.Message, attrs...)
	case SeverityWarning:
		log.Warn(e.Message, attrs...)
	default:
		log.Info(e.Message, attrs...)
	}
}

// NopSink discards everything; useful in tests.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, e Event) {}
