package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Affordance derivation thresholds over the bound set.
const (
	ExploreCoherenceCeiling = 0.4 // weakly coherent content invites exploration
	ExploitStrengthFloor    = 0.5 // strong coherent content invites exploitation

	DefaultBaselineEntropy = 1.0
)

// realityModel is the mutable per-agent state behind the service. Readers only
// ever see immutable RealityView snapshots.
type realityModel struct {
	version         uint64
	bound           []domain.BoundInference
	baselineEntropy float64
	updatedAt       time.Time
}

// RealityService owns the unified reality model: the single bound
// representation the rest of the agent treats as current reality. Writes are
// versioned; a writer that integrates against a version that has since moved
// gets a stale-state error and must re-read.
type RealityService struct {
	beliefs domain.BeliefStore
	logger  *zap.Logger

	mu     sync.RWMutex
	models map[uuid.UUID]*realityModel
}

func NewRealityService(beliefs domain.BeliefStore, logger *zap.Logger) *RealityService {
	return &RealityService{
		beliefs: beliefs,
		logger:  logger,
		models:  make(map[uuid.UUID]*realityModel),
	}
}

func (s *RealityService) model(agentID uuid.UUID) *realityModel {
	if m, ok := s.models[agentID]; ok {
		return m
	}
	m := &realityModel{
		baselineEntropy: DefaultBaselineEntropy,
		updatedAt:       time.Now().UTC(),
	}
	s.models[agentID] = m
	return m
}

// Snapshot returns an immutable view of the agent's current model. The bound
// slice is copied; mutating the view never touches the model.
func (s *RealityService) Snapshot(agentID uuid.UUID) *domain.RealityView {
	s.mu.Lock()
	m := s.model(agentID)
	view := s.buildView(agentID, m)
	s.mu.Unlock()
	return view
}

func (s *RealityService) buildView(agentID uuid.UUID, m *realityModel) *domain.RealityView {
	bound := make([]domain.BoundInference, len(m.bound))
	copy(bound, m.bound)

	view := &domain.RealityView{
		AgentID:         agentID,
		Version:         m.version,
		Bound:           bound,
		Transparent:     transparentLayers(bound),
		Coherence:       boundCoherence(bound),
		BaselineEntropy: m.baselineEntropy,
		UpdatedAt:       m.updatedAt,
	}
	view.Affordances = deriveAffordances(bound)
	return view
}

// Integrate replaces the bound set with a binding result. The caller passes
// the version its competition was scored against; if the model moved in the
// meantime the write is refused rather than silently clobbering newer content.
func (s *RealityService) Integrate(_ context.Context, agentID uuid.UUID, expectedVersion uint64, result *domain.BindingResult) (*domain.RealityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.model(agentID)
	if m.version != expectedVersion {
		return nil, domain.NewStaleState(agentID.String(), expectedVersion, m.version)
	}
	if len(result.Admitted) > MaxBindingCapacity {
		return nil, domain.NewBindingCapacity(agentID.String(), len(result.Admitted), MaxBindingCapacity)
	}

	m.bound = make([]domain.BoundInference, len(result.Admitted))
	copy(m.bound, result.Admitted)
	m.version++
	m.updatedAt = time.Now().UTC()

	view := s.buildView(agentID, m)
	s.logger.Debug("reality model integrated",
		zap.String("agent_id", agentID.String()),
		zap.Uint64("version", m.version),
		zap.Int("bound", len(m.bound)),
		zap.Float64("coherence", view.Coherence))
	return view, nil
}

// RefreshBaseline recomputes the empty-model entropy from the agent's active
// beliefs. With no beliefs the default baseline stands.
func (s *RealityService) RefreshBaseline(ctx context.Context, agentID uuid.UUID) error {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return err
	}

	var sum float64
	var n int
	for i := range beliefs {
		if beliefs[i].Status != domain.BeliefActive {
			continue
		}
		sum += beliefs[i].Entropy()
		n++
	}

	s.mu.Lock()
	m := s.model(agentID)
	if n > 0 {
		m.baselineEntropy = sum / float64(n)
	} else {
		m.baselineEntropy = DefaultBaselineEntropy
	}
	s.mu.Unlock()
	return nil
}

// transparentLayers lists the source layers whose content is currently bound.
// Bound content is lived through rather than inspected; these layers are the
// ones the agent does not currently see as model.
func transparentLayers(bound []domain.BoundInference) []string {
	seen := make(map[string]struct{}, len(bound))
	var layers []string
	for i := range bound {
		l := bound[i].SourceLayer
		if _, ok := seen[l]; ok || l == "" {
			continue
		}
		seen[l] = struct{}{}
		layers = append(layers, l)
	}
	sort.Strings(layers)
	return layers
}

// boundCoherence is the mean pairwise embedding similarity of the bound set.
func boundCoherence(bound []domain.BoundInference) float64 {
	if len(bound) == 0 {
		return 0
	}
	embeddings := make([][]float32, len(bound))
	for i := range bound {
		embeddings[i] = bound[i].Embedding
	}
	return domain.MeanPairwiseSimilarity(embeddings)
}

// deriveAffordances reads action opportunities straight off the bound set:
// weakly coherent content invites exploration, strong coherent content invites
// exploitation, the rest asks for attention.
func deriveAffordances(bound []domain.BoundInference) []domain.EpistemicAffordance {
	var out []domain.EpistemicAffordance
	for i := range bound {
		b := &bound[i]
		action := "attend"
		switch {
		case b.Coherence < ExploreCoherenceCeiling:
			action = "explore"
		case b.BindingStrength >= ExploitStrengthFloor:
			action = "exploit"
		}
		out = append(out, domain.EpistemicAffordance{
			Action:      action,
			SourceLayer: b.SourceLayer,
			Weight:      b.BindingStrength,
		})
	}
	return out
}
