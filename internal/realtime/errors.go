package realtime

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	// TLS failures
	ErrTLSHandshake = errors.New("websocket tls handshake failed")

	// Network / transport failures
	ErrDial              = errors.New("websocket dial failed")
	ErrConnectionLost    = errors.New("websocket connection lost")
	ErrConnectionRefused = errors.New("websocket connection refused")
	ErrHostUnreachable   = errors.New("websocket host unreachable")
	ErrTimeout           = errors.New("websocket connection timeout")
	ErrEOF               = errors.New("websocket connection closed unexpectedly")

	// Handshake / protocol failures
	ErrBadHandshake   = errors.New("websocket bad handshake")
	ErrNotAuthorized  = errors.New("websocket handshake not authorized")
	ErrClosedByServer = errors.New("websocket closed by server")
)

const (
	CodeTLSHandshake      = 495 // non-standard, indicates TLS handshake failure
	CodeConnectionLost    = 104 // ECONNRESET
	CodeConnectionRefused = 111 // ECONNREFUSED
	CodeHostUnreachable   = 113 // EHOSTUNREACH
	CodeDial              = 520 // generic dial failure
	CodeTimeout           = 408 // i/o timeout
	CodeEOF               = 499 // peer went away without a close frame
)

const (
	CategoryTLS       = "tls"
	CategoryNetwork   = "network"
	CategoryHandshake = "handshake"
	CategoryRuntime   = "runtime"
	CategoryUnknown   = "unknown"
)

// ChannelError is a dial or read failure sorted into a coarse category.  Code carries
// the errno, HTTP status or websocket close code that best describes it.
type ChannelError struct {
	Code     int
	Kind     error
	Cause    error
	Category string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *ChannelError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return e.Kind
}

// Is lets errors.Is match on the sentinel Kind (e.g. ErrTLSHandshake)
func (e *ChannelError) Is(target error) bool {
	return target == e.Kind
}

func newChannelError(code int, category string, kind error, cause error) error {
	return &ChannelError{
		Code:     code,
		Kind:     kind,
		Cause:    cause,
		Category: category,
	}
}

func classifyDialError(err error, resp *http.Response) error {
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newChannelError(resp.StatusCode, CategoryHandshake, ErrNotAuthorized, err)
		default:
			return newChannelError(resp.StatusCode, CategoryHandshake, ErrBadHandshake, err)
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newChannelError(CodeTimeout, CategoryNetwork, ErrTimeout, err)
	}

	var tlsHeaderErr tls.RecordHeaderError
	var unknownAuthErr x509.UnknownAuthorityError
	var certInvalidErr x509.CertificateInvalidError
	var hostErr x509.HostnameError
	if errors.As(err, &tlsHeaderErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &certInvalidErr) || errors.As(err, &hostErr) {
		return newChannelError(CodeTLSHandshake, CategoryTLS, ErrTLSHandshake, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(err, syscall.ECONNREFUSED):
			return newChannelError(CodeConnectionRefused, CategoryNetwork, ErrConnectionRefused, err)
		case errors.Is(err, syscall.ECONNRESET):
			return newChannelError(CodeConnectionLost, CategoryNetwork, ErrConnectionLost, err)
		case errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH):
			return newChannelError(CodeHostUnreachable, CategoryNetwork, ErrHostUnreachable, err)
		}
		return newChannelError(CodeDial, CategoryNetwork, ErrDial, err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newChannelError(CodeEOF, CategoryNetwork, ErrEOF, err)
	}

	// Catch textual hints when errors aren't typed
	lowerMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerMsg, "connection refused"):
		return newChannelError(CodeConnectionRefused, CategoryNetwork, ErrConnectionRefused, err)
	case strings.Contains(lowerMsg, "host unreachable"):
		return newChannelError(CodeHostUnreachable, CategoryNetwork, ErrHostUnreachable, err)
	case strings.Contains(lowerMsg, "timeout"):
		return newChannelError(CodeTimeout, CategoryNetwork, ErrTimeout, err)
	}

	return newChannelError(CodeDial, CategoryUnknown, ErrDial, err)
}

func classifyReadError(err error) error {
	if err == nil {
		return newChannelError(CodeDial, CategoryRuntime, ErrConnectionLost, errors.New("connection lost"))
	}

	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return newChannelError(closeErr.Code, CategoryRuntime, ErrClosedByServer, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newChannelError(CodeTimeout, CategoryRuntime, ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newChannelError(CodeEOF, CategoryRuntime, ErrEOF, err)
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return newChannelError(CodeConnectionLost, CategoryRuntime, ErrConnectionLost, err)
	}

	return newChannelError(CodeDial, CategoryRuntime, ErrConnectionLost, err)
}

// ClassifyError exposes the classification for errors that did not come from this
// package's dialer (e.g. a custom Dialer implementation).
func ClassifyError(err error) *ChannelError {
	var ce *ChannelError
	if errors.As(classifyReadError(err), &ce) {
		return ce
	}
	return &ChannelError{Code: CodeDial, Kind: ErrConnectionLost, Cause: err, Category: CategoryRuntime}
}
