package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrecisionProfile is the hyper-model's forecast of how confidence should be
// allocated across processing layers and modalities for one cognitive cycle.
// Regenerated every cycle.
type PrecisionProfile struct {
	ID                 uuid.UUID          `json:"id"`
	AgentID            uuid.UUID          `json:"agent_id"`
	LayerWeights       map[string]float64 `json:"layer_weights"`
	ModalityWeights    map[string]float64 `json:"modality_weights"`
	TemporalDepth      int                `json:"temporal_depth"`
	MetaPrecision      float64            `json:"meta_precision"`
	ContextFingerprint string             `json:"context_fingerprint"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// Clone returns a deep copy so a broadcast profile can be read by subscribers
// while the forecaster keeps mutating its own working copy.
func (p *PrecisionProfile) Clone() *PrecisionProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.LayerWeights = make(map[string]float64, len(p.LayerWeights))
	for k, v := range p.LayerWeights {
		c.LayerWeights[k] = v
	}
	c.ModalityWeights = make(map[string]float64, len(p.ModalityWeights))
	for k, v := range p.ModalityWeights {
		c.ModalityWeights[k] = v
	}
	return &c
}

// ErrorDirection tags a forecast error by the sign of (predicted - actual).
type ErrorDirection string

const (
	DirectionOverConfident  ErrorDirection = "over_confident"
	DirectionUnderConfident ErrorDirection = "under_confident"
)

// PrecisionError is one forecast-vs-observed divergence for a layer.
type PrecisionError struct {
	AgentID    uuid.UUID      `json:"agent_id"`
	LayerID    string         `json:"layer_id"`
	Predicted  float64        `json:"predicted"`
	Actual     float64        `json:"actual"`
	Magnitude  float64        `json:"magnitude"`
	Direction  ErrorDirection `json:"direction"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// LayerState is the per-layer activity snapshot fed into a forecast.
type LayerState struct {
	Activity float64 `json:"activity"`
	Modality string  `json:"modality"`
	// SharesPrecision marks layers that exchange precision estimates
	// bidirectionally with the hyper-model, one input to epistemic depth.
	SharesPrecision bool `json:"shares_precision"`
}

// ForecastInput carries everything a forecast needs: the context fingerprint,
// current layer states, and the errors observed since the last cycle.
type ForecastInput struct {
	AgentID      uuid.UUID             `json:"agent_id"`
	Context      string                `json:"context"`
	LayerStates  map[string]LayerState `json:"layer_states"`
	RecentErrors []PrecisionError      `json:"recent_errors"`
}

// ObservedNeed is the precision each layer actually required during a cycle,
// measured after the fact. Input to the forecaster's learning step.
type ObservedNeed struct {
	AgentID     uuid.UUID          `json:"agent_id"`
	LayerActual map[string]float64 `json:"layer_actual"`
	ObservedAt  time.Time          `json:"observed_at"`
}
