package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

var ErrChannelNotStarted = errors.New("channel has not been started")

// Dispatcher receives the frames of a channel in transport order, and is told once
// when the channel gives up reconnecting.
type Dispatcher interface {
	Route(ctx context.Context, raw []byte)
	ReportSyncError(ctx context.Context, reason string, attempts int)
}

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type ChannelOptionFunc func(*Channel)

func WithReconnectBaseInterval(base time.Duration) ChannelOptionFunc {
	return func(c *Channel) {
		c.baseInterval = base
	}
}

func WithMaxReconnectAttempts(maxAttempts int) ChannelOptionFunc {
	return func(c *Channel) {
		c.machine.maxAttempts = maxAttempts
	}
}

func WithMaxBackoff(maxBackoff time.Duration) ChannelOptionFunc {
	return func(c *Channel) {
		c.maxBackoff = maxBackoff
	}
}

func WithJitter(jitter JitterFunc) ChannelOptionFunc {
	return func(c *Channel) {
		c.jitter = jitter
	}
}

func WithAfterFunc(afterFunc AfterFunc) ChannelOptionFunc {
	return func(c *Channel) {
		c.afterFunc = afterFunc
	}
}

type Status struct {
	Key       string `json:"key"`
	Resource  string `json:"resource"`
	Id        string `json:"id"`
	Url       string `json:"url"`
	State     State  `json:"state"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

type event struct {
	kind       eventKind
	generation uint64
	conn       Conn
	data       []byte
	err        error
	ack        chan struct{}
}

func Key(resource string, id string) string {
	return resource + "/" + id
}

// Channel keeps one realtime subscription alive.  All state changes happen on a single
// event loop goroutine; dial and read results reach it as events tagged with the
// generation of the connection they belong to, and results for an older generation
// are dropped.
type Channel struct {
	resource   string
	id         string
	url        string
	dialer     Dialer
	dispatcher Dispatcher

	baseInterval time.Duration
	maxBackoff   time.Duration
	jitter       JitterFunc
	afterFunc    AfterFunc

	events   chan event
	started  atomic.Bool
	stopping chan struct{}
	done     chan struct{}

	// closed is set by teardown; no event is queued after that
	postMu sync.RWMutex
	closed bool

	statusMu sync.RWMutex
	status   Status

	// owned by the event loop
	machine    machine
	generation uint64
	conn       Conn
	retryTimer Timer
	lastErr    error
}

func NewChannel(resource string, id string, url string, dialer Dialer, dispatcher Dispatcher, opts ...ChannelOptionFunc) *Channel {
	c := &Channel{
		resource:     resource,
		id:           id,
		url:          url,
		dialer:       dialer,
		dispatcher:   dispatcher,
		baseInterval: DefaultReconnectBaseInterval,
		maxBackoff:   DefaultMaxBackoff,
		jitter:       UniformJitter(DefaultMaxJitter),
		afterFunc:    systemAfterFunc,
		events:       make(chan event, 16),
		stopping:     make(chan struct{}),
		done:         make(chan struct{}),
		machine:      newMachine(DefaultMaxReconnectAttempts),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.status = Status{Key: c.Key(), Resource: resource, Id: id, Url: url, State: Closed}

	return c
}

func (c *Channel) Key() string {
	return Key(c.resource, c.id)
}

// Start runs the event loop until ctx is cancelled and opens the connection.
// Cancelling ctx tears the channel down: the pending retry is cancelled and the
// socket closed without any further reconnect.
func (c *Channel) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	go c.run(ctx)
	c.post(event{kind: eventOpenRequested})
}

// Open reconnects a channel that was closed or stopped retrying.  The attempt counter
// starts over.
func (c *Channel) Open() error {
	return c.request(eventOpenRequested)
}

// Close closes the connection and cancels any pending reconnect.  The channel stays
// dormant until Open is called.
func (c *Channel) Close() error {
	return c.request(eventCloseRequested)
}

// Done is closed once the event loop has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Channel) State() State {
	return c.Status().State
}

func (c *Channel) Attempts() int {
	return c.Status().Attempts
}

func (c *Channel) request(kind eventKind) error {
	if !c.started.Load() {
		return ErrChannelNotStarted
	}

	ack := make(chan struct{})
	c.post(event{kind: kind, ack: ack})

	select {
	case <-ack:
	case <-c.done:
	}
	return nil
}

func (c *Channel) post(ev event) {
	c.postMu.RLock()
	defer c.postMu.RUnlock()

	if c.closed {
		discard(ev)
		return
	}

	select {
	case c.events <- ev:
	case <-c.stopping:
		discard(ev)
	}
}

// discard releases whatever an event that will never be handled holds.
func discard(ev event) {
	if ev.conn != nil {
		ev.conn.Close()
	}
	if ev.ack != nil {
		close(ev.ack)
	}
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
			if ev.ack != nil {
				close(ev.ack)
			}
		}
	}
}

func (c *Channel) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventDialSucceeded, eventDialFailed, eventConnectionLost, eventRetryDue, eventMessage:
		if ev.generation != c.generation {
			if ev.conn != nil {
				ev.conn.Close()
			}
			return
		}
	}

	if ev.kind == eventMessage {
		metrics.messageReceivedCounter.WithLabelValues(c.resource).Inc()
		c.dispatcher.Route(ctx, ev.data)
		return
	}

	if ev.err != nil {
		c.lastErr = ev.err
		c.countFailure(ev)
	}

	previous := c.machine.state
	next, effects := c.machine.next(ev.kind)
	c.machine = next

	for _, eff := range effects {
		c.apply(ctx, eff, ev)
	}

	c.publishStatus()

	if previous != c.machine.state {
		logger.Log.WithFields(logrus.Fields{
			"channel":  c.Key(),
			"event":    ev.kind,
			"from":     previous,
			"to":       c.machine.state,
			"attempts": c.machine.attempts,
		}).Debug("Realtime channel state changed")
	}
}

func (c *Channel) apply(ctx context.Context, eff effect, ev event) {
	log := logger.Log.WithFields(logrus.Fields{"channel": c.Key(), "url": c.url})

	switch eff {
	case effectDial:
		c.generation++
		generation := c.generation
		metrics.dialAttemptCounter.WithLabelValues(c.resource).Inc()

		go func() {
			conn, err := c.dialer.Dial(ctx, c.url)
			if err == nil && ctx.Err() != nil {
				conn.Close()
				return
			}
			if err != nil {
				c.post(event{kind: eventDialFailed, generation: generation, err: err})
				return
			}
			c.post(event{kind: eventDialSucceeded, generation: generation, conn: conn})
		}()

	case effectAdoptConn:
		c.conn = ev.conn
		c.lastErr = nil
		metrics.openChannelGauge.Inc()
		log.Info("Realtime channel open")
		go c.read(ev.conn, c.generation)

	case effectDiscardConn:
		if ev.conn != nil {
			ev.conn.Close()
		}

	case effectCloseConn:
		c.generation++
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
			metrics.openChannelGauge.Dec()
		}

	case effectScheduleRetry:
		delay := ReconnectDelay(c.machine.attempts, c.baseInterval, c.maxBackoff, c.jitter)
		generation := c.generation
		metrics.reconnectScheduledCounter.WithLabelValues(c.resource).Inc()

		log.WithFields(logrus.Fields{"attempt": c.machine.attempts, "delay": delay, "error": c.lastErr}).Info("Scheduling realtime reconnect")

		c.retryTimer = c.afterFunc(delay, func() {
			c.post(event{kind: eventRetryDue, generation: generation})
		})

	case effectCancelRetry:
		if c.retryTimer != nil {
			c.retryTimer.Stop()
			c.retryTimer = nil
		}

	case effectReportExhausted:
		reason := "connection lost"
		if c.lastErr != nil {
			reason = c.lastErr.Error()
		}

		metrics.reconnectExhaustedCounter.WithLabelValues(c.resource).Inc()
		log.WithFields(logrus.Fields{"attempts": c.machine.attempts, "error": c.lastErr}).Warn("Realtime channel stopped reconnecting")

		c.dispatcher.ReportSyncError(ctx, reason, c.machine.attempts)
	}
}

func (c *Channel) read(conn Conn, generation uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.post(event{kind: eventConnectionLost, generation: generation, err: classifyReadError(err)})
			return
		}

		c.post(event{kind: eventMessage, generation: generation, data: data})
	}
}

func (c *Channel) countFailure(ev event) {
	category := ClassifyError(ev.err).Category

	switch ev.kind {
	case eventDialFailed:
		metrics.dialFailureCounter.WithLabelValues(c.resource, category).Inc()
	case eventConnectionLost:
		metrics.connectionLostCounter.WithLabelValues(c.resource, category).Inc()
	}
}

func (c *Channel) teardown() {
	close(c.stopping)
	c.postMu.Lock()
	c.closed = true
	c.postMu.Unlock()

	c.apply(context.Background(), effectCancelRetry, event{})
	c.apply(context.Background(), effectCloseConn, event{})
	c.machine.state = Closed

	// Drain results that raced with the shutdown
	for {
		select {
		case ev := <-c.events:
			discard(ev)
		default:
			c.publishStatus()
			logger.Log.WithFields(logrus.Fields{"channel": c.Key()}).Debug("Realtime channel stopped")
			return
		}
	}
}

func (c *Channel) publishStatus() {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	c.status.State = c.machine.state
	c.status.Attempts = c.machine.attempts
	c.status.LastError = ""
	if c.lastErr != nil {
		c.status.LastError = c.lastErr.Error()
	}
}
