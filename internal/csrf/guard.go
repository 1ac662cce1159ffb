package csrf

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

// TokenPublisher receives every token the acquirer obtains.
type TokenPublisher interface {
	Publish(Token)
}

// Guard is an http.RoundTripper that attaches the anti-forgery header to
// state-changing requests.  The header value is read from the store on every send so
// that a token rotated after the request was built is still honored.
type Guard struct {
	next       http.RoundTripper
	store      TokenStore
	headerName string
	published  atomic.Value
}

func NewGuard(next http.RoundTripper, store TokenStore, headerName string) *Guard {
	if next == nil {
		next = http.DefaultTransport
	}
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	return &Guard{next: next, store: store, headerName: headerName}
}

// IsMutating reports whether requests using method must carry the token.
func IsMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	if !IsMutating(req.Method) {
		return g.next.RoundTrip(req)
	}

	token, found := g.store.Get()

	metrics.guardedRequestCounter.With(map[string]string{
		"method":         req.Method,
		"token_attached": strconv.FormatBool(found),
	}).Inc()

	if !found {
		// Sent as-is; the backend answers with 403 and the caller decides what to do.
		logger.Log.WithFields(logrus.Fields{"method": req.Method, "url": req.URL.String()}).Debug("No anti-forgery token available for mutating request")
		return g.next.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	guarded := req.Clone(req.Context())
	guarded.Header.Set(g.headerName, string(token))

	return g.next.RoundTrip(guarded)
}

// Publish records the most recently acquired token.  It is reported, never sent:
// the header always comes from the store.
func (g *Guard) Publish(t Token) {
	g.published.Store(t)
}

func (g *Guard) Published() (Token, bool) {
	t, ok := g.published.Load().(Token)
	return t, ok && t != ""
}

// NewGuardedClient returns an http.Client that shares jar with the acquirer and sends
// mutating requests through a Guard.
func NewGuardedClient(jar http.CookieJar, guard *Guard) *http.Client {
	return &http.Client{
		Jar:       jar,
		Transport: guard,
	}
}
