package domain

import "fmt"

// ErrorKind is the closed taxonomy of core failures. Validation and core-limit
// violations surface immediately; timeouts and capacity limits degrade via
// logs and metrics; belief updates never partially apply.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindInsufficientEvidence ErrorKind = "insufficient_evidence"
	KindCoreLimitViolation   ErrorKind = "core_limit_violation"
	KindBindingCapacity      ErrorKind = "binding_capacity"
	KindForecastTimeout      ErrorKind = "forecast_timeout"
	KindStaleState           ErrorKind = "stale_state"
)

// CoreError is the structured error returned at API boundaries: the kind, the
// offending entity, and, where a degraded path was taken, the fallback value
// actually used.
type CoreError struct {
	Kind     ErrorKind `json:"kind"`
	EntityID string    `json:"entity_id,omitempty"`
	Message  string    `json:"message"`
	Fallback any       `json:"fallback,omitempty"`
}

func (e *CoreError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (entity %s)", e.Kind, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(entityID, msg string) *CoreError {
	return &CoreError{Kind: KindValidation, EntityID: entityID, Message: msg}
}

func NewInsufficientEvidence(entityID string, have, need int) *CoreError {
	return &CoreError{
		Kind:     KindInsufficientEvidence,
		EntityID: entityID,
		Message:  fmt.Sprintf("have %d evidence samples, need %d", have, need),
	}
}

func NewCoreLimitViolation(entityID, msg string) *CoreError {
	return &CoreError{Kind: KindCoreLimitViolation, EntityID: entityID, Message: msg}
}

func NewBindingCapacity(entityID string, have, limit int) *CoreError {
	return &CoreError{
		Kind:     KindBindingCapacity,
		EntityID: entityID,
		Message:  fmt.Sprintf("bound set of %d exceeds capacity %d", have, limit),
	}
}

func NewForecastTimeout(entityID string, fallback any) *CoreError {
	return &CoreError{
		Kind:     KindForecastTimeout,
		EntityID: entityID,
		Message:  "forecast deadline exceeded, previous profile used",
		Fallback: fallback,
	}
}

func NewStaleState(entityID string, expected, actual uint64) *CoreError {
	return &CoreError{
		Kind:     KindStaleState,
		EntityID: entityID,
		Message:  fmt.Sprintf("model version moved from %d to %d during integration", expected, actual),
	}
}

// IsKind reports whether err is a CoreError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == kind
}
