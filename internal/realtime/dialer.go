package realtime

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultHandshakeTimeout = 10 * time.Second

// Conn is the read side of an established realtime connection.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type DialerOptionFunc func(*WebsocketDialer)

func WithTLSConfig(tlsConfig *tls.Config) DialerOptionFunc {
	return func(d *WebsocketDialer) {
		d.dialer.TLSClientConfig = tlsConfig
	}
}

func WithHandshakeTimeout(timeout time.Duration) DialerOptionFunc {
	return func(d *WebsocketDialer) {
		if timeout > 0 {
			d.dialer.HandshakeTimeout = timeout
		}
	}
}

// WithOrigin sets the Origin header sent on the handshake.  Servers that validate the
// origin against their allowed hosts reject handshakes without one.
func WithOrigin(origin string) DialerOptionFunc {
	return func(d *WebsocketDialer) {
		if origin != "" {
			d.header.Set("Origin", origin)
		}
	}
}

// WebsocketDialer dials with the session's cookie jar so the handshake carries the
// same session and csrf cookies as the guarded http client.
type WebsocketDialer struct {
	dialer websocket.Dialer
	header http.Header
}

func NewWebsocketDialer(jar http.CookieJar, opts ...DialerOptionFunc) *WebsocketDialer {
	d := &WebsocketDialer{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: DefaultHandshakeTimeout,
			Jar:              jar,
		},
		header: http.Header{},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header.Clone())
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, classifyDialError(err, resp)
	}

	return conn, nil
}
