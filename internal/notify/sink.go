package notify

import (
	"context"
	"io"

	"github.com/RedHatInsights/console-link/internal/router"
)

// Sink receives everything the router emits.
type Sink interface {
	router.NotificationSink
	router.HighlightSink
	router.DefaultSink
}

// Fanout delivers each notification, highlight and unrouted frame to every sink in
// order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, n router.Notification) {
	for _, s := range f {
		s.Notify(ctx, n)
	}
}

func (f Fanout) Highlight(ctx context.Context, h router.Highlight) {
	for _, s := range f {
		s.Highlight(ctx, h)
	}
}

func (f Fanout) Unrouted(ctx context.Context, u router.Unrouted) {
	for _, s := range f {
		s.Unrouted(ctx, u)
	}
}

// Close closes the sinks that hold a connection.
func (f Fanout) Close() error {
	var firstErr error
	for _, s := range f {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (f Fanout) Sinks() router.Sinks {
	return router.Sinks{Notifications: f, Highlights: f, Default: f}
}
