package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RedHatInsights/console-link/internal/csrf"
	"github.com/RedHatInsights/console-link/internal/realtime"
)

const URL_BASE_PATH = "/api/console-link/v1"

type fakeTokenReporter struct {
	token csrf.Token
}

func (r *fakeTokenReporter) Published() (csrf.Token, bool) {
	return r.token, r.token != ""
}

type fakeAcquirer struct {
	mu           sync.Mutex
	calls        int
	err          error
	lastAcquired time.Time
	tokens       *fakeTokenReporter
}

func (a *fakeAcquirer) Acquire(ctx context.Context) (csrf.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++
	if a.err != nil {
		return "", a.err
	}

	a.lastAcquired = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a.tokens.token = "renewed"
	return "renewed", nil
}

func (a *fakeAcquirer) LastAcquired() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAcquired, !a.lastAcquired.IsZero()
}

type idleConn struct {
	closed chan struct{}
	once   sync.Once
}

func (c *idleConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("use of closed network connection")
}

func (c *idleConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type stubDialer struct {
	mu      sync.Mutex
	failing bool
}

func (d *stubDialer) Dial(ctx context.Context, url string) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failing {
		return nil, errors.New("connection refused")
	}
	return &idleConn{closed: make(chan struct{})}, nil
}

func (d *stubDialer) SetFailing(failing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = failing
}

type nopDispatcher struct{}

func (nopDispatcher) Route(context.Context, []byte) {}

func (nopDispatcher) ReportSyncError(context.Context, string, int) {}
