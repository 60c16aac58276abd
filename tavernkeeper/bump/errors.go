package bump

import (
	"errors"
	"fmt"
)

// ErrorKind classifies thread-gateway failures structurally so the scheduler
// never has to sniff error message strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindPermission
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// GatewayError wraps a failure from the thread gateway with its classification
// and the operation that produced it.
type GatewayError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTerminal reports whether err means the thread can never be bumped again:
// the thread is gone/inaccessible, or a permission wall blocks unarchiving or
// sending. Everything else (rate limits, network blips, unclassified errors)
// is treated as transient and retried.
func IsTerminal(err error) bool {
	var gerr *GatewayError
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Kind == KindNotFound || gerr.Kind == KindPermission
}
