package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type BeliefStatus string

const (
	BeliefActive   BeliefStatus = "active"
	BeliefArchived BeliefStatus = "archived"
)

func ValidBeliefStatus(s string) bool {
	switch BeliefStatus(s) {
	case BeliefActive, BeliefArchived:
		return true
	}
	return false
}

// Precision bounds. Every precision value in the system is clamped to this
// range before it is stored or used in a computation.
const (
	MinPrecision = 0.01
	MaxPrecision = 100.0
)

// Confidence bounds applied after any belief revision.
const (
	MinConfidence = 0.1
	MaxConfidence = 0.99
)

// ClampPrecision bounds a precision value to [MinPrecision, MaxPrecision].
func ClampPrecision(p float64) float64 {
	if p < MinPrecision {
		return MinPrecision
	}
	if p > MaxPrecision {
		return MaxPrecision
	}
	return p
}

// ClampConfidence bounds a confidence value to [MinConfidence, MaxConfidence].
func ClampConfidence(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// BeliefState is a probabilistic belief over one domain primitive: a mean
// vector with a diagonal precision matrix. Created on first observation,
// mutated only by the updater, archived (never deleted) once confidence stays
// persistently low with sufficient evidence.
type BeliefState struct {
	ID            uuid.UUID    `json:"id"`
	AgentID       uuid.UUID    `json:"agent_id"`
	Primitive     string       `json:"primitive"`
	Mean          []float32    `json:"-"`
	Precision     []float64    `json:"precision"`
	Dimension     int          `json:"dimension"`
	Confidence    float64      `json:"confidence"`
	EvidenceCount int          `json:"evidence_count"`
	Status        BeliefStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Entropy returns the differential entropy of the Gaussian belief, derived
// analytically from the determinant of the (diagonal) precision matrix:
// H = d/2 * (1 + ln 2pi) - 1/2 * sum ln(lambda_i).
func (b *BeliefState) Entropy() float64 {
	d := float64(b.Dimension)
	if d == 0 {
		return 0
	}
	var logDet float64
	for _, p := range b.Precision {
		logDet += math.Log(ClampPrecision(p))
	}
	return 0.5*d*(1+math.Log(2*math.Pi)) - 0.5*logDet
}

// PredictionError is one piece of accumulated evidence against a belief:
// a scalar error from the numeric inference engine plus its variance.
type PredictionError struct {
	BeliefID   uuid.UUID `json:"belief_id"`
	Error      float64   `json:"error"`
	Variance   float64   `json:"variance"`
	RecordedAt time.Time `json:"recorded_at"`
}
