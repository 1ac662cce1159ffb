package router

import "time"

type HighlightKind string

const (
	StockIncrease HighlightKind = "stock_increase"
	StockDecrease HighlightKind = "stock_decrease"
	NewOrder      HighlightKind = "new_order"
	LowStock      HighlightKind = "low_stock"
)

// DisplayPolicy maps message types to notification durations and highlight kinds to
// highlight durations.  A type or kind missing from the maps produces no effect.
type DisplayPolicy struct {
	notifications map[MessageType]time.Duration
	highlights    map[HighlightKind]time.Duration
}

func NewDisplayPolicy(notifications map[MessageType]time.Duration, highlights map[HighlightKind]time.Duration) DisplayPolicy {
	p := DisplayPolicy{
		notifications: make(map[MessageType]time.Duration, len(notifications)),
		highlights:    make(map[HighlightKind]time.Duration, len(highlights)),
	}
	for k, v := range notifications {
		p.notifications[k] = v
	}
	for k, v := range highlights {
		p.highlights[k] = v
	}
	return p
}

func DefaultDisplayPolicy() DisplayPolicy {
	return NewDisplayPolicy(
		map[MessageType]time.Duration{
			StockUpdate:       4 * time.Second,
			ShopifyOrder:      5 * time.Second,
			InventorySync:     3 * time.Second,
			LowStockAlert:     8 * time.Second,
			WebhookConfigured: 4 * time.Second,
			SyncError:         10 * time.Second,
		},
		map[HighlightKind]time.Duration{
			StockIncrease: 5 * time.Second,
			StockDecrease: 5 * time.Second,
			NewOrder:      5 * time.Second,
			LowStock:      8 * time.Second,
		},
	)
}

func (p DisplayPolicy) NotificationDuration(t MessageType) (time.Duration, bool) {
	d, ok := p.notifications[t]
	return d, ok
}

func (p DisplayPolicy) HighlightDuration(k HighlightKind) (time.Duration, bool) {
	d, ok := p.highlights[k]
	return d, ok
}
