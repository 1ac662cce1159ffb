package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type MessageType string

const (
	StockUpdate       MessageType = "stock_update"
	ShopifyOrder      MessageType = "shopify_order"
	InventorySync     MessageType = "inventory_sync"
	LowStockAlert     MessageType = "low_stock_alert"
	WebhookConfigured MessageType = "webhook_configured"
	SyncError         MessageType = "sync_error"
)

var knownMessageTypes = map[MessageType]struct{}{
	StockUpdate:       {},
	ShopifyOrder:      {},
	InventorySync:     {},
	LowStockAlert:     {},
	WebhookConfigured: {},
	SyncError:         {},
}

func (t MessageType) Known() bool {
	_, ok := knownMessageTypes[t]
	return ok
}

func (t MessageType) String() string {
	return string(t)
}

var (
	ErrMalformedFrame = errors.New("malformed realtime frame")
	ErrMissingType    = errors.New("realtime frame has no type")
)

// Envelope is one inbound realtime message.  It is passed around by value and
// never modified after ParseEnvelope returns it.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Channel    string          `json:"channel"`
	Type       MessageType     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

type frame struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload"`
	Data    json.RawMessage `json:"data"`
}

var frameValidator = validator.New()

// ParseEnvelope decodes a frame of the form {"type": ..., "payload": ...}.  Frames that
// carry their body under "data", or inline next to "type", keep that body as the payload.
func ParseEnvelope(channel string, raw []byte, receivedAt time.Time) (Envelope, error) {
	var f frame

	if err := json.Unmarshal(raw, &f); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	if err := frameValidator.Struct(f); err != nil {
		return Envelope{}, ErrMissingType
	}

	payload := f.Payload
	if isAbsent(payload) {
		payload = f.Data
	}
	if isAbsent(payload) {
		payload = append(json.RawMessage(nil), raw...)
	}

	return Envelope{
		ID:         uuid.New(),
		Channel:    channel,
		Type:       MessageType(f.Type),
		Payload:    payload,
		ReceivedAt: receivedAt,
	}, nil
}

// NewEnvelope builds an envelope for a message that originates locally rather than
// from the wire.
func NewEnvelope(channel string, t MessageType, payload interface{}, receivedAt time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		ID:         uuid.New(),
		Channel:    channel,
		Type:       t,
		Payload:    body,
		ReceivedAt: receivedAt,
	}, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
