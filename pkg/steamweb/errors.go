package steamweb

import (
	"errors"
	"fmt"
)

// Steam result codes the engine cares about. The full enum is much larger;
// anything unlisted is surfaced with its raw numeric value.
const (
	EResultOK                    = 1
	EResultFail                  = 2
	EResultInvalidPassword       = 5
	EResultAccessDenied          = 15
	EResultServiceUnavailable    = 20
	EResultLimitExceeded         = 25
	EResultDuplicateRequest      = 29
	EResultRateLimitExceeded     = 84
	EResultTwoFactorCodeMismatch = 88
)

var (
	// ErrNeedAuth reports that the remote service rejected the session; the
	// caller should refresh or re-login and may retry once.
	ErrNeedAuth = errors.New("steamweb: session rejected")

	// ErrProtocol reports a response the client could not make sense of.
	ErrProtocol = errors.New("steamweb: unexpected response shape")

	// ErrUnavailable reports a transport-level failure (network down, DNS,
	// timeout). The request may never have reached Steam.
	ErrUnavailable = errors.New("steamweb: service unreachable")
)

// Error is a typed Steam API failure carrying the EResult code Steam
// returned, either in the x-eresult header or a response body.
type Error struct {
	StatusCode int
	EResult    int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("steamweb: eresult %d: %s", e.EResult, e.Message)
	}
	if e.EResult != 0 {
		return fmt.Sprintf("steamweb: eresult %d (http %d)", e.EResult, e.StatusCode)
	}
	return fmt.Sprintf("steamweb: http %d", e.StatusCode)
}

// AuthRejected reports whether the failure means the submitted credentials
// or guard code were wrong. These must never be retried with the same
// inputs.
func (e *Error) AuthRejected() bool {
	switch e.EResult {
	case EResultInvalidPassword, EResultTwoFactorCodeMismatch, EResultAccessDenied:
		return true
	}
	return false
}

// RateLimited reports whether the caller should back off before retrying.
func (e *Error) RateLimited() bool {
	return e.EResult == EResultRateLimitExceeded || e.EResult == EResultLimitExceeded
}
