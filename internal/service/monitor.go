package service

import (
	"context"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Monitor thresholds for flagging issues in the assessment.
const (
	LowCoherenceThreshold      = 0.3
	LowMetaPrecisionThreshold  = 0.2
	StarvedEvidenceBeliefRatio = 0.5
)

// MonitorService produces the introspective assessment a higher-level
// controller polls: how well the current cognitive state is serving the agent.
// Read-only across every store it touches.
type MonitorService struct {
	beliefs  domain.BeliefStore
	profiles domain.ProfileStore
	reality  *RealityService
	logger   *zap.Logger
}

func NewMonitorService(beliefs domain.BeliefStore, profiles domain.ProfileStore, reality *RealityService, logger *zap.Logger) *MonitorService {
	return &MonitorService{beliefs: beliefs, profiles: profiles, reality: reality, logger: logger}
}

// Assess summarizes progress and confidence and names concrete issues. An
// empty issue list with low confidence is worse than a named problem, so the
// checks err toward reporting.
func (s *MonitorService) Assess(ctx context.Context, agentID uuid.UUID) (*domain.Assessment, error) {
	view := s.reality.Snapshot(agentID)

	a := &domain.Assessment{
		AgentID:    agentID,
		AssessedAt: time.Now().UTC(),
	}

	// Progress reads off the model: how full and how coherent the bound
	// set is relative to a default working set.
	fill := float64(len(view.Bound)) / float64(DefaultBindingCapacity)
	if fill > 1 {
		fill = 1
	}
	a.Progress = 0.5*fill + 0.5*view.Coherence

	if len(view.Bound) == 0 {
		a.Issues = append(a.Issues, "reality model is empty")
	} else if view.Coherence < LowCoherenceThreshold {
		a.Issues = append(a.Issues, "bound content is weakly coherent")
	}

	metaPrecision := 0.0
	profile, err := s.profiles.GetLatest(ctx, agentID)
	if err != nil || profile == nil {
		a.Issues = append(a.Issues, "no precision profile generated yet")
	} else {
		metaPrecision = profile.MetaPrecision
		if metaPrecision < LowMetaPrecisionThreshold {
			a.Issues = append(a.Issues, "hyper-model forecasts are persistently biased")
		}
	}

	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	meanConfidence := 0.0
	if len(beliefs) > 0 {
		starved := 0
		for i := range beliefs {
			meanConfidence += beliefs[i].Confidence
			if beliefs[i].EvidenceCount < MinEvidenceCount {
				starved++
			}
		}
		meanConfidence /= float64(len(beliefs))
		if float64(starved)/float64(len(beliefs)) > StarvedEvidenceBeliefRatio {
			a.Issues = append(a.Issues, "most beliefs lack evidence for revision")
		}
	} else {
		a.Issues = append(a.Issues, "no beliefs registered")
	}

	a.Confidence = 0.5*metaPrecision + 0.5*meanConfidence

	s.logger.Debug("assessment produced",
		zap.String("agent_id", agentID.String()),
		zap.Float64("progress", a.Progress),
		zap.Float64("confidence", a.Confidence),
		zap.Strings("issues", a.Issues))

	return a, nil
}
