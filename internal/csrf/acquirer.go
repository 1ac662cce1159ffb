package csrf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxAttempts     = 3
	DefaultRetryBaseDelay  = 1000 * time.Millisecond
	DefaultSettleDelay     = 300 * time.Millisecond
	DefaultRenewalInterval = 30 * time.Minute

	cacheBusterParam = "_"
	acquisitionKey   = "csrf-token"
)

var (
	ErrAcquisitionExhausted = errors.New("csrf token acquisition exhausted")
	ErrRenewalRunning       = errors.New("csrf token renewal already running")
	ErrBootstrapStatus      = errors.New("csrf bootstrap endpoint returned an error status")
	ErrTokenNotVisible      = errors.New("csrf token cookie not visible after bootstrap")
	ErrAcquirerClosed       = errors.New("csrf token acquirer closed")
)

type AcquirerOptionFunc func(*Acquirer)

func WithMaxAttempts(maxAttempts int) AcquirerOptionFunc {
	return func(a *Acquirer) {
		a.maxAttempts = maxAttempts
	}
}

func WithRetryBaseDelay(delay time.Duration) AcquirerOptionFunc {
	return func(a *Acquirer) {
		a.retryBaseDelay = delay
	}
}

func WithSettleDelay(delay time.Duration) AcquirerOptionFunc {
	return func(a *Acquirer) {
		a.settleDelay = delay
	}
}

func WithRenewalInterval(interval time.Duration) AcquirerOptionFunc {
	return func(a *Acquirer) {
		a.renewalInterval = interval
	}
}

// Acquirer obtains the anti-forgery token from the bootstrap endpoint and keeps it
// fresh.  Only one acquisition chain (first attempt plus its retries) runs at a time;
// callers arriving while a chain is in flight wait for that chain's result.
type Acquirer struct {
	client       *http.Client
	bootstrapUrl *url.URL
	store        TokenStore
	publisher    TokenPublisher

	maxAttempts     int
	retryBaseDelay  time.Duration
	settleDelay     time.Duration
	renewalInterval time.Duration
	now             func() time.Time

	group singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	stopRenewal  func()
	renewalDone  chan struct{}
	lastAcquired time.Time
}

// NewAcquirer builds an acquirer.  client must share its cookie jar with store,
// otherwise the Set-Cookie from the bootstrap call is never visible.
func NewAcquirer(client *http.Client, bootstrapUrl *url.URL, store TokenStore, publisher TokenPublisher, opts ...AcquirerOptionFunc) *Acquirer {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Acquirer{
		client:          client,
		bootstrapUrl:    bootstrapUrl,
		store:           store,
		publisher:       publisher,
		maxAttempts:     DefaultMaxAttempts,
		retryBaseDelay:  DefaultRetryBaseDelay,
		settleDelay:     DefaultSettleDelay,
		renewalInterval: DefaultRenewalInterval,
		now:             time.Now,
		ctx:             ctx,
		cancel:          cancel,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// BuildBootstrapUrl joins the API base url and the bootstrap path.
func BuildBootstrapUrl(apiBaseUrl string, bootstrapPath string) (*url.URL, error) {
	base, err := url.Parse(apiBaseUrl)
	if err != nil {
		return nil, err
	}
	return base.JoinPath(bootstrapPath), nil
}

// Acquire runs an acquisition chain, or joins the one already in flight.  Running out
// of attempts yields ErrAcquisitionExhausted; callers are expected to log it and carry
// on, since a missing token only degrades individual mutating requests.
func (a *Acquirer) Acquire(ctx context.Context) (Token, error) {
	if a.ctx.Err() != nil {
		return "", ErrAcquirerClosed
	}

	resultChan := a.group.DoChan(acquisitionKey, func() (interface{}, error) {
		return a.runChain()
	})

	select {
	case result := <-resultChan:
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(Token), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Acquirer) runChain() (Token, error) {
	timer := prometheus.NewTimer(metrics.acquisitionDuration)
	defer timer.ObserveDuration()

	start := time.Now()

	for attempt := 1; ; attempt++ {
		log := logger.Log.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": a.maxAttempts})

		token, err := a.attempt()
		if err == nil {
			a.publisher.Publish(token)

			a.mu.Lock()
			a.lastAcquired = a.now()
			a.mu.Unlock()

			metrics.acquisitionResultCounter.WithLabelValues("acquired").Inc()
			log.WithFields(logger.SinceField(start)).Debug("Acquired anti-forgery token")
			return token, nil
		}

		if a.ctx.Err() != nil {
			metrics.acquisitionResultCounter.WithLabelValues("canceled").Inc()
			return "", ErrAcquirerClosed
		}

		if attempt >= a.maxAttempts {
			metrics.acquisitionResultCounter.WithLabelValues("exhausted").Inc()
			log.WithFields(logrus.Fields{"error": err}).Warn("Giving up on anti-forgery token acquisition")
			return "", fmt.Errorf("%w after %d attempts: %w", ErrAcquisitionExhausted, attempt, err)
		}

		delay := a.retryBaseDelay * time.Duration(attempt)
		log.WithFields(logrus.Fields{"error": err, "retry_in": delay}).Info("Anti-forgery token not available yet, retrying")

		if err := sleepContext(a.ctx, delay); err != nil {
			metrics.acquisitionResultCounter.WithLabelValues("canceled").Inc()
			return "", ErrAcquirerClosed
		}
	}
}

func (a *Acquirer) attempt() (Token, error) {
	metrics.acquisitionAttemptCounter.Inc()

	req, err := http.NewRequestWithContext(a.ctx, http.MethodGet, a.cacheBustedUrl(), nil)
	if err != nil {
		return "", err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: %d", ErrBootstrapStatus, resp.StatusCode)
	}

	// Give the cookie write a moment to land before looking for it
	if err := sleepContext(a.ctx, a.settleDelay); err != nil {
		return "", err
	}

	token, found := a.store.Get()
	if !found {
		return "", ErrTokenNotVisible
	}

	return token, nil
}

func (a *Acquirer) cacheBustedUrl() string {
	u := *a.bootstrapUrl
	q := u.Query()
	q.Set(cacheBusterParam, strconv.FormatInt(a.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// StartRenewal re-acquires the token every renewal interval until the returned stop
// function is called, ctx is canceled or the acquirer is closed.  Only one renewal
// loop may run per acquirer.
func (a *Acquirer) StartRenewal(ctx context.Context) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return nil, ErrAcquirerClosed
	}

	if a.renewalDone != nil {
		select {
		case <-a.renewalDone:
		default:
			return nil, ErrRenewalRunning
		}
	}

	renewalCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(a.renewalInterval)
		defer ticker.Stop()

		for {
			select {
			case <-renewalCtx.Done():
				return
			case <-a.ctx.Done():
				return
			case <-ticker.C:
				logger.Log.Debug("Renewing anti-forgery token")
				if _, err := a.Acquire(renewalCtx); err != nil {
					logger.Log.WithFields(logrus.Fields{"error": err}).Warn("Anti-forgery token renewal failed")
				}
			}
		}
	}()

	stop := func() {
		cancel()
		<-done
	}

	a.stopRenewal = stop
	a.renewalDone = done

	return stop, nil
}

// LastAcquired reports when a token was last published.
func (a *Acquirer) LastAcquired() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAcquired, !a.lastAcquired.IsZero()
}

// Close cancels any pending retry wait and the renewal loop.  The acquirer cannot be
// used afterwards.
func (a *Acquirer) Close() {
	a.cancel()

	a.mu.Lock()
	stop := a.stopRenewal
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
