package openai

import (
	"errors"
	"fmt"
)

// ErrNoContent signals that there was nothing to embed. It is deliberately
// distinct from provider failures: "no input" is an ingestion condition, not
// an upstream outage.
var ErrNoContent = errors.New("no content to embed")

// Kind classifies provider failures so callers can react differently to
// quota exhaustion, auth problems, timeouts, and content-policy refusals.
type Kind int

const (
	// KindAPI covers malformed or otherwise unexpected provider responses.
	KindAPI Kind = iota
	// KindAuth covers invalid or missing credentials (401/403).
	KindAuth
	// KindRateLimit covers quota and rate-limit rejections (429).
	KindRateLimit
	// KindTimeout covers request deadlines and upstream gateway timeouts.
	KindTimeout
	// KindNetwork covers connection-level failures before any response.
	KindNetwork
	// KindContentPolicy covers content-filter refusals.
	KindContentPolicy
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindContentPolicy:
		return "content_policy"
	default:
		return "api"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("openai: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("openai: %s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is a provider Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
