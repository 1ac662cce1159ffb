package csrf

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

const (
	DefaultCookieName = "csrftoken"
	DefaultHeaderName = "X-CSRFToken"
)

// Token is the opaque anti-forgery value the backend expects on mutating requests.
type Token string

func (t Token) String() string {
	return string(t)
}

// TokenStore is a plain accessor for the current token.  It carries no retry or
// freshness policy of its own.
type TokenStore interface {
	Get() (Token, bool)
	Set(Token)
}

// NewCookieJar builds the jar shared by the bootstrap client, the guarded API client
// and the realtime dialer so that they all see the same session cookies.
func NewCookieJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// CookieTokenStore reads and writes the token cookie in a cookie jar, scoped to the
// backend's base URL.
type CookieTokenStore struct {
	jar        http.CookieJar
	baseUrl    *url.URL
	cookieName string
}

func NewCookieTokenStore(jar http.CookieJar, baseUrl *url.URL, cookieName string) *CookieTokenStore {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &CookieTokenStore{jar: jar, baseUrl: baseUrl, cookieName: cookieName}
}

func (s *CookieTokenStore) Get() (Token, bool) {
	for _, c := range s.jar.Cookies(s.baseUrl) {
		if c.Name == s.cookieName && c.Value != "" {
			return Token(c.Value), true
		}
	}
	return "", false
}

// Set replaces the cookie in a single jar write.
func (s *CookieTokenStore) Set(t Token) {
	s.jar.SetCookies(s.baseUrl, []*http.Cookie{{
		Name:  s.cookieName,
		Value: string(t),
		Path:  "/",
	}})
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token Token
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Get() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryTokenStore) Set(t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}
