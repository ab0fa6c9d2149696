package domain

import "time"

// CandidateInference is one proposal competing for admission into the unified
// reality model. Precision comes from the active precision profile's weighting
// of the source layer; Entropy is the residual entropy the inference engine
// reports for the candidate's posterior.
type CandidateInference struct {
	ID          string    `json:"id"`
	SourceLayer string    `json:"source_layer"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
	Precision   float64   `json:"precision"`
	Entropy     float64   `json:"entropy"`
}

// BoundInference is a candidate that won the binding competition, scored and
// admitted into the unified model. Ephemeral per cycle.
type BoundInference struct {
	CandidateInference
	Coherence            float64   `json:"coherence"`
	UncertaintyReduction float64   `json:"uncertainty_reduction"`
	BindingStrength      float64   `json:"binding_strength"`
	BoundAt              time.Time `json:"bound_at"`
}

// Strength computes binding strength from its three factors. Negative
// uncertainty reduction always yields zero; a locally confident but globally
// destabilizing inference never carries binding strength.
func Strength(precision, coherence, uncertaintyReduction float64) float64 {
	if uncertaintyReduction <= 0 {
		return 0
	}
	return precision * coherence * uncertaintyReduction
}

// BindingResult is the outcome of one binding competition.
type BindingResult struct {
	Admitted      []BoundInference `json:"admitted"`
	AdmittedCount int              `json:"admitted_count"`
	RejectedCount int              `json:"rejected_count"`
	// Retained is true when no candidate survived and the previous bound
	// set was kept (with decay) instead of being cleared.
	Retained bool `json:"retained"`
}
