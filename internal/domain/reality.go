package domain

import (
	"time"

	"github.com/google/uuid"
)

// EpistemicAffordance is an action the agent can infer from what is currently
// bound: attend harder to a layer, explore an uncertain one, or exploit a
// confident coherent one.
type EpistemicAffordance struct {
	Action      string  `json:"action"`
	SourceLayer string  `json:"source_layer"`
	Weight      float64 `json:"weight"`
}

// RealityView is an immutable snapshot of the unified reality model, handed to
// readers (binder scoring, epistemic field) without exposing mutable state.
type RealityView struct {
	AgentID         uuid.UUID             `json:"agent_id"`
	Version         uint64                `json:"version"`
	Bound           []BoundInference      `json:"bound"`
	Transparent     []string              `json:"transparent"`
	Coherence       float64               `json:"coherence"`
	BaselineEntropy float64               `json:"baseline_entropy"`
	Affordances     []EpistemicAffordance `json:"affordances"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// AggregateEntropy is the model's current aggregate entropy: the mean residual
// entropy of the bound set, or the belief-derived baseline when nothing is
// bound yet.
func (v *RealityView) AggregateEntropy() float64 {
	if len(v.Bound) == 0 {
		return v.BaselineEntropy
	}
	var sum float64
	for _, b := range v.Bound {
		sum += b.Entropy
	}
	return sum / float64(len(v.Bound))
}

// ProjectedEntropy is the aggregate entropy the model would have if the
// candidate were admitted.
func (v *RealityView) ProjectedEntropy(c CandidateInference) float64 {
	n := float64(len(v.Bound))
	return (v.AggregateEntropy()*n + c.Entropy) / (n + 1)
}

// UncertaintyReduction is the decrease in aggregate entropy admitting the
// candidate would cause. Negative when the candidate would destabilize the
// model.
func (v *RealityView) UncertaintyReduction(c CandidateInference) float64 {
	return v.AggregateEntropy() - v.ProjectedEntropy(c)
}

// EpistemicState is the read-only output of the epistemic field: a scalar
// depth score plus the factors that produced it.
type EpistemicState struct {
	AgentID    uuid.UUID          `json:"agent_id"`
	DepthScore float64            `json:"depth_score"`
	Factors    map[string]float64 `json:"factors"`
	ComputedAt time.Time          `json:"computed_at"`
}

// Assessment is the monitor() output consumed by a higher-level controller.
type Assessment struct {
	AgentID    uuid.UUID `json:"agent_id"`
	Progress   float64   `json:"progress"`
	Confidence float64   `json:"confidence"`
	Issues     []string  `json:"issues"`
	AssessedAt time.Time `json:"assessed_at"`
}
