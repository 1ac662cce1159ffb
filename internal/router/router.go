package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

const DefaultSubscriberBufferSize = 64

type RouterOptionFunc func(*Router)

func WithSubscriberBufferSize(size int) RouterOptionFunc {
	return func(r *Router) {
		r.subscriberBufferSize = size
	}
}

func WithClock(now func() time.Time) RouterOptionFunc {
	return func(r *Router) {
		r.now = now
	}
}

// Router turns inbound frames for one channel into notifications, highlights and an
// ordered envelope stream for subscribers.  It never touches the business data the
// envelopes describe.
type Router struct {
	channel string
	policy  DisplayPolicy
	history *History
	sinks   Sinks
	now     func() time.Time

	subscriberBufferSize int
	subMu                sync.RWMutex
	nextSubscriberID     int
	subscribers          map[int]chan Envelope
}

func NewRouter(channel string, policy DisplayPolicy, history *History, sinks Sinks, opts ...RouterOptionFunc) *Router {
	r := &Router{
		channel:              channel,
		policy:               policy,
		history:              history,
		sinks:                sinks.withDefaults(),
		now:                  time.Now,
		subscriberBufferSize: DefaultSubscriberBufferSize,
		subscribers:          make(map[int]chan Envelope),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Router) Channel() string {
	return r.channel
}

func (r *Router) History() *History {
	return r.history
}

// Route handles one frame as received from the transport.  Frames are expected in
// transport order from a single goroutine.
func (r *Router) Route(ctx context.Context, raw []byte) {
	envelope, err := ParseEnvelope(r.channel, raw, r.now())
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrMissingType) {
			reason = "missing_type"
		}

		logger.Log.WithFields(logrus.Fields{"channel": r.channel, "error": err}).Debug("Unable to parse realtime frame")
		metrics.unroutedMessageCounter.WithLabelValues(reason).Inc()
		r.sinks.Default.Unrouted(ctx, Unrouted{Channel: r.channel, Raw: raw, Reason: err.Error()})
		return
	}

	r.accept(ctx, envelope)
}

// Surface routes a locally generated message exactly as if it had arrived on the
// channel.
func (r *Router) Surface(ctx context.Context, t MessageType, payload interface{}) error {
	envelope, err := NewEnvelope(r.channel, t, payload, r.now())
	if err != nil {
		return err
	}

	r.accept(ctx, envelope)
	return nil
}

// ReportSyncError surfaces a sync_error for a channel that stopped reconnecting.
func (r *Router) ReportSyncError(ctx context.Context, reason string, attempts int) {
	payload := map[string]interface{}{
		"message":  fmt.Sprintf("Live updates stopped after %d reconnect attempts", attempts),
		"reason":   reason,
		"attempts": attempts,
	}

	if err := r.Surface(ctx, SyncError, payload); err != nil {
		logger.Log.WithFields(logrus.Fields{"channel": r.channel, "error": err}).Error("Unable to surface sync error")
	}
}

func (r *Router) accept(ctx context.Context, envelope Envelope) {
	log := logger.Log.WithFields(logrus.Fields{"channel": r.channel, "type": envelope.Type, "envelope_id": envelope.ID})

	r.history.Append(envelope)
	r.publish(envelope)

	if !envelope.Type.Known() {
		log.Debug("Received realtime message of unknown type")
		metrics.unroutedMessageCounter.WithLabelValues("unknown_type").Inc()
		r.sinks.Default.Unrouted(ctx, Unrouted{Channel: r.channel, Envelope: &envelope, Reason: "unknown message type"})
		return
	}

	metrics.messageRoutedCounter.WithLabelValues(string(envelope.Type)).Inc()

	attrs := decodeAttributes(envelope.Payload)

	if duration, ok := r.policy.NotificationDuration(envelope.Type); ok {
		metrics.notificationCounter.WithLabelValues(string(envelope.Type)).Inc()
		r.sinks.Notifications.Notify(ctx, Notification{
			EnvelopeID: envelope.ID,
			Channel:    r.channel,
			Type:       envelope.Type,
			Level:      levelFor(envelope.Type),
			Message:    messageFor(envelope.Type, attrs),
			Duration:   duration,
			Payload:    envelope.Payload,
		})
	}

	kind, ok := highlightKindFor(envelope.Type, attrs)
	if !ok {
		return
	}

	if duration, ok := r.policy.HighlightDuration(kind); ok {
		metrics.highlightCounter.WithLabelValues(string(kind)).Inc()
		r.sinks.Highlights.Highlight(ctx, Highlight{
			EnvelopeID: envelope.ID,
			Channel:    r.channel,
			Kind:       kind,
			Target:     attrs.target(envelope.Type),
			Duration:   duration,
		})
	}
}

// Subscribe returns an ordered stream of every envelope accepted after the call.  A
// subscriber that falls more than the buffer size behind loses envelopes rather than
// stalling the channel.
func (r *Router) Subscribe() (<-chan Envelope, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSubscriberID
	r.nextSubscriberID++

	ch := make(chan Envelope, r.subscriberBufferSize)
	r.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()
			delete(r.subscribers, id)
			close(ch)
		})
	}

	return ch, cancel
}

func (r *Router) publish(envelope Envelope) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- envelope:
		default:
			metrics.subscriberDroppedCounter.Inc()
		}
	}
}

type attributes map[string]interface{}

func decodeAttributes(payload json.RawMessage) attributes {
	attrs := attributes{}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&attrs); err != nil {
		// Not an object; nothing to classify on
		return attributes{}
	}

	return attrs
}

func (a attributes) number(key string) (float64, bool) {
	n, ok := a[key].(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	return f, err == nil
}

func (a attributes) text(key string) (string, bool) {
	switch v := a[key].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// stockDelta prefers an explicit delta and falls back to the quantity change.
func (a attributes) stockDelta() (float64, bool) {
	if delta, ok := a.number("delta"); ok {
		return delta, true
	}

	quantity, hasQuantity := a.number("quantity")
	previous, hasPrevious := a.number("previous_quantity")
	if hasQuantity && hasPrevious {
		return quantity - previous, true
	}

	return 0, false
}

var (
	stockTargetKeys = []string{"sku", "variant_id", "product_id"}
	orderTargetKeys = []string{"order_number", "order_id", "id"}
)

func (a attributes) target(t MessageType) string {
	keys := stockTargetKeys
	if t == ShopifyOrder {
		keys = orderTargetKeys
	}

	for _, key := range keys {
		if v, ok := a.text(key); ok {
			return v
		}
	}
	return ""
}

func highlightKindFor(t MessageType, attrs attributes) (HighlightKind, bool) {
	switch t {
	case StockUpdate:
		delta, ok := attrs.stockDelta()
		switch {
		case !ok || delta == 0:
			return "", false
		case delta > 0:
			return StockIncrease, true
		default:
			return StockDecrease, true
		}
	case ShopifyOrder:
		return NewOrder, true
	case LowStockAlert:
		return LowStock, true
	}
	return "", false
}

func levelFor(t MessageType) Level {
	switch t {
	case ShopifyOrder, WebhookConfigured:
		return LevelSuccess
	case LowStockAlert:
		return LevelWarning
	case SyncError:
		return LevelError
	default:
		return LevelInfo
	}
}

func messageFor(t MessageType, attrs attributes) string {
	if msg, ok := attrs.text("message"); ok {
		return msg
	}

	target := attrs.target(t)

	switch t {
	case StockUpdate:
		if delta, ok := attrs.stockDelta(); ok && target != "" {
			return fmt.Sprintf("Stock for %s changed by %+g", target, delta)
		}
		return "Stock updated"
	case ShopifyOrder:
		if target != "" {
			return fmt.Sprintf("New Shopify order %s", target)
		}
		return "New Shopify order received"
	case InventorySync:
		return "Inventory synchronized"
	case LowStockAlert:
		if target != "" {
			return fmt.Sprintf("Low stock for %s", target)
		}
		return "Low stock alert"
	case WebhookConfigured:
		return "Webhook configured"
	case SyncError:
		if reason, ok := attrs.text("error"); ok {
			return fmt.Sprintf("Sync error: %s", reason)
		}
		return "Sync error"
	}
	return string(t)
}
