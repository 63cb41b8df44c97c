package marketplace

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a marketplace call failure. Callers treat every kind
// as "skip this user/marketplace for the cycle"; only transient failures
// are worth an immediate retry.
type ErrorKind uint8

const (
	// KindTransient covers connectivity failures, timeouts, and 5xx responses.
	KindTransient ErrorKind = iota + 1
	// KindAuth covers rejected or revoked credentials (401/403).
	KindAuth
	// KindProtocol covers malformed responses and unexpected status codes.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified marketplace API failure.
type Error struct {
	Market Marketplace
	Op     string
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s error", e.Market, e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable marketplace failure.
func IsTransient(err error) bool { return kindOf(err) == KindTransient }

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return kindOf(err) == KindAuth }

// IsProtocol reports whether err is an unexpected-response failure.
func IsProtocol(err error) bool { return kindOf(err) == KindProtocol }

func kindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return 0
}

// transportError covers client.Do failures: refused connections, DNS, and
// deadline expiry all land here as transient.
func transportError(m Marketplace, op string, err error) *Error {
	return &Error{Market: m, Op: op, Kind: KindTransient, Err: err}
}

func statusError(m Marketplace, op string, status int, body []byte) *Error {
	kind := KindProtocol
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status >= 500:
		kind = KindTransient
	}

	var err error
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		const maxBody = 512
		if len(trimmed) > maxBody {
			trimmed = trimmed[:maxBody]
		}
		err = errors.New(trimmed)
	}
	return &Error{Market: m, Op: op, Kind: kind, Status: status, Err: err}
}

func protocolError(m Marketplace, op string, err error) *Error {
	return &Error{Market: m, Op: op, Kind: KindProtocol, Err: err}
}
