package realtime

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, net.ErrClosed
	default:
	}

	select {
	case frame, ok := <-c.frames:
		if !ok {
			return 0, nil, io.ErrUnexpectedEOF
		}
		return websocket.TextMessage, frame, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// drop simulates the server going away
func (c *fakeConn) drop() {
	close(c.frames)
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	failing bool
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.failing {
		return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	}

	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) SetFailing(failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = failing
}

func (d *fakeDialer) LastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type syncErrorReport struct {
	reason   string
	attempts int
}

type spyDispatcher struct {
	mu         sync.Mutex
	frames     []string
	syncErrors []syncErrorReport
}

func (s *spyDispatcher) Route(ctx context.Context, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(raw))
}

func (s *spyDispatcher) ReportSyncError(ctx context.Context, reason string, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncErrors = append(s.syncErrors, syncErrorReport{reason: reason, attempts: attempts})
}

func (s *spyDispatcher) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func (s *spyDispatcher) SyncErrors() []syncErrorReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]syncErrorReport(nil), s.syncErrors...)
}

type manualTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
	owner   *manualTimers
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// manualTimers hands out timers that only fire when the test says so.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTimer{delay: d, f: f, owner: m}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualTimers) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			pending++
		}
	}
	return pending
}

func (m *manualTimers) Stopped() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	stopped := 0
	for _, t := range m.timers {
		if t.stopped {
			stopped++
		}
	}
	return stopped
}

func (m *manualTimers) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var delays []time.Duration
	for _, t := range m.timers {
		delays = append(delays, t.delay)
	}
	return delays
}

// FireNext runs the oldest timer that has neither fired nor been stopped.
func (m *manualTimers) FireNext() bool {
	m.mu.Lock()
	var next *manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	m.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

// FireStopped runs every stopped timer anyway, as if Stop had lost the race.
func (m *manualTimers) FireStopped() {
	m.mu.Lock()
	var stopped []*manualTimer
	for _, t := range m.timers {
		if t.stopped {
			stopped = append(stopped, t)
		}
	}
	m.mu.Unlock()

	for _, t := range stopped {
		t.f()
	}
}

// gatedDialer holds every dial until release is closed.
type gatedDialer struct {
	fakeDialer
	entered chan struct{}
	release chan struct{}
}

func newGatedDialer() *gatedDialer {
	return &gatedDialer{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.entered <- struct{}{}
	<-d.release
	return d.fakeDialer.Dial(ctx, url)
}
