package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient, user-visible message shown for Duration.
type Notification struct {
	EnvelopeID uuid.UUID       `json:"envelope_id"`
	Channel    string          `json:"channel"`
	Type       MessageType     `json:"type"`
	Level      Level           `json:"level"`
	Message    string          `json:"message"`
	Duration   time.Duration   `json:"duration"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Highlight marks a row (a product, variant or order) on screen for Duration.
type Highlight struct {
	EnvelopeID uuid.UUID     `json:"envelope_id"`
	Channel    string        `json:"channel"`
	Kind       HighlightKind `json:"kind"`
	Target     string        `json:"target,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Unrouted carries a frame the router could not classify.  Envelope is nil when the
// frame could not be parsed at all.
type Unrouted struct {
	Channel  string    `json:"channel"`
	Envelope *Envelope `json:"envelope,omitempty"`
	Raw      []byte    `json:"-"`
	Reason   string    `json:"reason"`
}

type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}

type HighlightSink interface {
	Highlight(ctx context.Context, h Highlight)
}

type DefaultSink interface {
	Unrouted(ctx context.Context, u Unrouted)
}

type Sinks struct {
	Notifications NotificationSink
	Highlights    HighlightSink
	Default       DefaultSink
}

type discardSink struct{}

func (discardSink) Notify(context.Context, Notification) {
}

func (discardSink) Highlight(context.Context, Highlight) {
}

func (discardSink) Unrouted(context.Context, Unrouted) {
}

func (s Sinks) withDefaults() Sinks {
	if s.Notifications == nil {
		s.Notifications = discardSink{}
	}
	if s.Highlights == nil {
		s.Highlights = discardSink{}
	}
	if s.Default == nil {
		s.Default = discardSink{}
	}
	return s
}
