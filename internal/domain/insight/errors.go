package insight

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// Kind classifies a failed request.
type Kind string

const (
	KindTransport       Kind = "transport"
	KindInvalidResponse Kind = "invalid_response"
	KindCancelled       Kind = "cancelled"
)

var (
	ErrRequestFailed   = errors.New("insight: request failed")
	ErrTransport       = errors.New("insight: transport error")
	ErrInvalidResponse = errors.New("insight: invalid response")
	ErrCancelled       = errors.New("insight: request cancelled")
)

// RequestFailed is the single error type surfaced by Service.Invoke.
// errors.Is matches ErrRequestFailed and the sentinel of its Kind.
type RequestFailed struct {
	Kind       Kind
	Cause      error
	Payload    []byte
	Violations []schema.Violation
	// PayloadURL is set once an invalid payload has been archived.
	PayloadURL string
	// Permanent marks transport errors that will not resolve with retries,
	// such as a 4xx rejection of the request by the provider.
	Permanent bool
}

func (e *RequestFailed) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("insight %s", e.Kind)
	}
	return fmt.Sprintf("insight %s: %v", e.Kind, e.Cause)
}

func (e *RequestFailed) Unwrap() error { return e.Cause }

func (e *RequestFailed) Is(target error) bool {
	switch target {
	case ErrRequestFailed:
		return true
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	case ErrCancelled:
		return e.Kind == KindCancelled
	}
	return false
}

// Retryable reports whether another attempt may succeed.
func (e *RequestFailed) Retryable() bool { return e.Kind == KindTransport && !e.Permanent }

// Transport wraps a network, status or provider error.
func Transport(cause error) error {
	return &RequestFailed{Kind: KindTransport, Cause: cause}
}

// PermanentTransport wraps a provider error that retrying cannot fix.
func PermanentTransport(cause error) error {
	return &RequestFailed{Kind: KindTransport, Cause: cause, Permanent: true}
}

// InvalidResponse wraps a payload that is not JSON or does not match the schema.
func InvalidResponse(payload []byte, cause error) error {
	e := &RequestFailed{Kind: KindInvalidResponse, Cause: cause, Payload: payload}
	var ve *schema.ValidationError
	if errors.As(cause, &ve) {
		e.Violations = ve.Violations
	}
	return e
}

// Cancelled marks a call that was superseded or whose context ended.
func Cancelled(cause error) error {
	return &RequestFailed{Kind: KindCancelled, Cause: cause}
}

// Classify turns any gateway error into a *RequestFailed. Errors that already
// carry a kind are kept; context errors become cancellations.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf
	}
	if errors.Is(err, context.Canceled) || (ctx != nil && errors.Is(ctx.Err(), context.Canceled)) {
		return Cancelled(err)
	}
	return Transport(err)
}

// KindOf returns the kind of err, or "" when it is not a RequestFailed.
func KindOf(err error) Kind {
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Kind
	}
	return ""
}
