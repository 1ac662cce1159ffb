package notify

import (
	"context"
	"io"
	"sync"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/router"

	"github.com/sirupsen/logrus"
)

const DefaultQueueSize = 256

type delivery struct {
	kind    RecordKind
	deliver func(ctx context.Context)
}

// QueuedSink hands records to a sink on its own goroutine so a slow broker never
// holds up the channel that produced them.  When the queue is full the record is
// dropped and counted.
type QueuedSink struct {
	name  string
	sink  Sink
	queue chan delivery
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewQueuedSink(name string, sink Sink, size int) *QueuedSink {
	if size <= 0 {
		size = DefaultQueueSize
	}

	q := &QueuedSink{
		name:  name,
		sink:  sink,
		queue: make(chan delivery, size),
		done:  make(chan struct{}),
	}

	go q.run()

	return q
}

func (q *QueuedSink) Notify(ctx context.Context, n router.Notification) {
	q.enqueue(NotificationRecord, func(ctx context.Context) { q.sink.Notify(ctx, n) }, n.Channel)
}

func (q *QueuedSink) Highlight(ctx context.Context, h router.Highlight) {
	q.enqueue(HighlightRecord, func(ctx context.Context) { q.sink.Highlight(ctx, h) }, h.Channel)
}

func (q *QueuedSink) Unrouted(ctx context.Context, u router.Unrouted) {
	q.enqueue(UnroutedRecord, func(ctx context.Context) { q.sink.Unrouted(ctx, u) }, u.Channel)
}

func (q *QueuedSink) enqueue(kind RecordKind, deliver func(context.Context), channel string) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.droppedCounter.WithLabelValues(q.name, string(kind)).Inc()
		return
	}

	select {
	case q.queue <- delivery{kind: kind, deliver: deliver}:
	default:
		metrics.droppedCounter.WithLabelValues(q.name, string(kind)).Inc()
		logger.Log.WithFields(logrus.Fields{"sink": q.name, "kind": kind, "channel": channel}).Warn("Notification queue full, dropping record")
	}
}

func (q *QueuedSink) run() {
	defer close(q.done)

	// Delivery outlives the channel that produced the record
	ctx := context.Background()

	for d := range q.queue {
		d.deliver(ctx)
	}
}

// Close stops accepting records, delivers what is already queued and then closes the
// wrapped sink.
func (q *QueuedSink) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return nil
	}
	q.closed = true
	close(q.queue)
	q.mu.Unlock()

	<-q.done

	if c, ok := q.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
