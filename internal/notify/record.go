package notify

import (
	"encoding/json"
	"time"

	"github.com/RedHatInsights/console-link/internal/router"
)

type RecordKind string

const (
	NotificationRecord RecordKind = "notification"
	HighlightRecord    RecordKind = "highlight"
	UnroutedRecord     RecordKind = "unrouted"
)

// Record is the wire form shared by the Kafka and MQTT sinks.
type Record struct {
	Kind       RecordKind      `json:"kind"`
	Channel    string          `json:"channel"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	Level      string          `json:"level,omitempty"`
	Message    string          `json:"message,omitempty"`
	Highlight  string          `json:"highlight,omitempty"`
	Target     string          `json:"target,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func notificationRecord(n router.Notification, now time.Time) Record {
	return Record{
		Kind:       NotificationRecord,
		Channel:    n.Channel,
		EnvelopeID: n.EnvelopeID.String(),
		Type:       string(n.Type),
		Level:      string(n.Level),
		Message:    n.Message,
		DurationMs: n.Duration.Milliseconds(),
		Payload:    n.Payload,
		Timestamp:  now,
	}
}

func highlightRecord(h router.Highlight, now time.Time) Record {
	return Record{
		Kind:       HighlightRecord,
		Channel:    h.Channel,
		EnvelopeID: h.EnvelopeID.String(),
		Highlight:  string(h.Kind),
		Target:     h.Target,
		DurationMs: h.Duration.Milliseconds(),
		Timestamp:  now,
	}
}

func unroutedRecord(u router.Unrouted, now time.Time) Record {
	r := Record{
		Kind:      UnroutedRecord,
		Channel:   u.Channel,
		Reason:    u.Reason,
		Timestamp: now,
	}

	if u.Envelope != nil {
		r.EnvelopeID = u.Envelope.ID.String()
		r.Type = string(u.Envelope.Type)
		r.Payload = u.Envelope.Payload
	}

	return r
}
