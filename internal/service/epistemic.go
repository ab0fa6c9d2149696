package service

import (
	"context"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Epistemic depth factors and their weights. The score reads existing state
// only; computing it never feeds back into forecasting or binding.
const (
	FactorHyperModelActive = "hyper_model_active"
	FactorPrecisionSharing = "precision_sharing"
	FactorMetaPrecision    = "meta_precision"
	FactorModelCoherence   = "model_coherence"

	weightHyperModelActive = 0.3
	weightPrecisionSharing = 0.2
	weightMetaPrecision    = 0.3
	weightModelCoherence   = 0.2

	// A profile older than this no longer counts as an active hyper-model.
	HyperModelFreshness = 5 * time.Minute
)

// EpistemicService computes the agent's epistemic depth: how much the system
// currently knows about its own knowing. Strictly read-only over the profile
// store and the reality model.
type EpistemicService struct {
	profiles domain.ProfileStore
	reality  *RealityService
	logger   *zap.Logger
}

func NewEpistemicService(profiles domain.ProfileStore, reality *RealityService, logger *zap.Logger) *EpistemicService {
	return &EpistemicService{profiles: profiles, reality: reality, logger: logger}
}

// Assess scores epistemic depth from four observable factors: whether the
// hyper-model is actively forecasting, how many layers share precision
// bidirectionally, the hyper-model's trust in its own forecasts, and the
// coherence of the bound model.
func (s *EpistemicService) Assess(ctx context.Context, agentID uuid.UUID, layers map[string]domain.LayerState) (*domain.EpistemicState, error) {
	factors := map[string]float64{
		FactorHyperModelActive: 0,
		FactorPrecisionSharing: 0,
		FactorMetaPrecision:    0,
		FactorModelCoherence:   0,
	}

	profile, err := s.profiles.GetLatest(ctx, agentID)
	if err == nil && profile != nil {
		if time.Since(profile.GeneratedAt) <= HyperModelFreshness {
			factors[FactorHyperModelActive] = 1
		}
		factors[FactorMetaPrecision] = profile.MetaPrecision
	}

	if len(layers) > 0 {
		sharing := 0
		for _, ls := range layers {
			if ls.SharesPrecision {
				sharing++
			}
		}
		factors[FactorPrecisionSharing] = float64(sharing) / float64(len(layers))
	}

	view := s.reality.Snapshot(agentID)
	factors[FactorModelCoherence] = view.Coherence

	score := weightHyperModelActive*factors[FactorHyperModelActive] +
		weightPrecisionSharing*factors[FactorPrecisionSharing] +
		weightMetaPrecision*factors[FactorMetaPrecision] +
		weightModelCoherence*factors[FactorModelCoherence]

	return &domain.EpistemicState{
		AgentID:    agentID,
		DepthScore: score,
		Factors:    factors,
		ComputedAt: time.Now().UTC(),
	}, nil
}
