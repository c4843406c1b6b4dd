package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// FailureClass is how the orchestrator treats a failed backend call
type FailureClass int

const (
	// Transient failures are timeouts, cancellations and overloaded upstreams
	Transient FailureClass = iota
	// Billing failures come from account, quota or authorization configuration
	// and are the only failures that justify switching backends
	Billing
	// Fatal failures are everything else
	Fatal
)

func (c FailureClass) String() string {
	switch c {
	case Transient:
		return "transient"
	case Billing:
		return "billing"
	default:
		return "fatal"
	}
}

// billingKeywords overlap with some legitimate messages; the list is kept as is
var billingKeywords = []string{
	"billing", "quota", "exceeded", "disabled", "permission denied",
	"forbidden", "authentication", "credentials", "unauthorized",
	"service account", "project", "enable", "api not enabled",
	"billing_disabled", "requires billing to be enabled",
}

// IsBillingMessage reports whether an error message mentions billing, quota
// or authorization problems.
func IsBillingMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range billingKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Classify sorts a backend error into Transient, Billing or Fatal.
// Cancellation and deadline errors are checked first: "context deadline
// exceeded" would otherwise match the "exceeded" billing keyword.
func Classify(err error) FailureClass {
	if err == nil {
		return Fatal
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	if IsBillingMessage(err.Error()) {
		return Billing
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return Transient
		}
	}

	return Fatal
}
