package provider

import (
	"errors"
	"fmt"

	"github.com/andi-frame/TeamName-KulkasKu/internal/scanning"
)

// Kind is the category of an error surfaced by the orchestrator
type Kind int

const (
	// KindInputRejected means the upload is not a readable image; no backend was called
	KindInputRejected Kind = iota + 1
	// KindBilling means a backend refused the call for account reasons
	KindBilling
	// KindTransient means a backend call timed out or was cancelled
	KindTransient
	// KindFatal means a backend call failed in a way a retry will not fix
	KindFatal
	// KindMalformed means a backend reply could not be understood
	KindMalformed
	// KindUnavailable means no backend able to serve the request is configured
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInputRejected:
		return "input rejected"
	case KindBilling:
		return "billing"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindMalformed:
		return "malformed response"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Backend names which side of the fallback pair produced an error
type Backend string

const (
	Primary   Backend = "primary"
	Secondary Backend = "secondary"
)

// ErrNoServiceAvailable is the cause of KindUnavailable errors
var ErrNoServiceAvailable = errors.New("no service available")

// Error is an orchestrator failure with its category and the backend it came from
type Error struct {
	Kind    Kind
	Backend Backend
	Err     error
}

func (e *Error) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s backend: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of an orchestrator error, or KindFatal for any other error
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindFatal
}

// backendError wraps a failed backend call with the Kind its cause maps to
func backendError(backend Backend, err error) *Error {
	kind := KindFatal
	switch {
	case errors.Is(err, scanning.ErrMalformedResponse):
		kind = KindMalformed
	default:
		switch Classify(err) {
		case Billing:
			kind = KindBilling
		case Transient:
			kind = KindTransient
		}
	}
	return &Error{Kind: kind, Backend: backend, Err: err}
}
