package service

import (
	"context"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Precision-weighted update constants
const (
	MinEvidenceCount = 5 // No revision before this many error samples

	// Learning rate adapts to current confidence
	LearningRateConfident = 0.05 // confidence > 0.8
	LearningRateModerate  = 0.1  // 0.5 < confidence <= 0.8
	LearningRateUncertain = 0.2  // confidence <= 0.5

	ConfidentThreshold = 0.8
	ModerateThreshold  = 0.5

	// Archive when confidence sits at the floor with enough evidence behind it
	ArchiveConfidenceThreshold = 0.15
	ArchiveMinEvidence         = 10

	// Strong fresh evidence reactivates an archived belief
	RecoveryConfidenceThreshold = 0.5

	DefaultErrorWindow = 20
)

// UpdateResult reports what a revision attempt did.
type UpdateResult struct {
	BeliefID      uuid.UUID `json:"belief_id"`
	ShouldUpdate  bool      `json:"should_update"`
	OldConfidence float64   `json:"old_confidence"`
	NewConfidence float64   `json:"new_confidence"`
	EvidenceCount int       `json:"evidence_count"`
	Archived      bool      `json:"archived"`
	Recovered     bool      `json:"recovered"`
}

// UpdaterService revises belief confidence from accumulated prediction errors.
// It is the only mutator of belief state; every revision fully commits or
// fully rejects.
type UpdaterService struct {
	beliefs domain.BeliefStore
	events  *bus.Bus
	logger  *zap.Logger

	errorWindow int
}

func NewUpdaterService(beliefs domain.BeliefStore, events *bus.Bus, logger *zap.Logger) *UpdaterService {
	return &UpdaterService{
		beliefs:     beliefs,
		events:      events,
		logger:      logger,
		errorWindow: DefaultErrorWindow,
	}
}

// RecordError appends one engine-reported prediction error to a belief's
// evidence. Unknown belief ids are rejected before any write.
func (s *UpdaterService) RecordError(ctx context.Context, beliefID uuid.UUID, errVal, variance float64) error {
	if variance < 0 {
		return domain.NewValidationError(beliefID.String(), "error variance must be non-negative")
	}
	if _, err := s.beliefs.GetByID(ctx, beliefID); err != nil {
		return domain.NewValidationError(beliefID.String(), "unknown belief")
	}
	return s.beliefs.AppendError(ctx, beliefID, errVal, variance)
}

// Update revises a belief's confidence from its recent error window.
// Below the minimum evidence count this is a no-op signal, not a failure.
func (s *UpdaterService) Update(ctx context.Context, beliefID uuid.UUID) (*UpdateResult, error) {
	belief, err := s.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		return nil, domain.NewValidationError(beliefID.String(), "unknown belief")
	}

	recent, err := s.beliefs.ReadRecentErrors(ctx, beliefID, s.errorWindow)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{
		BeliefID:      beliefID,
		OldConfidence: belief.Confidence,
		NewConfidence: belief.Confidence,
		EvidenceCount: len(recent),
	}

	if len(recent) < MinEvidenceCount {
		s.logger.Debug("insufficient evidence for belief revision",
			zap.String("belief_id", beliefID.String()),
			zap.Int("evidence_count", len(recent)))
		return result, nil
	}

	meanErr, variance := errorStats(recent)
	weightedErr := meanErr / (1 + variance)
	lr := learningRate(belief.Confidence)

	newConfidence := domain.ClampConfidence(belief.Confidence * (1 - lr*weightedErr))

	// Validate the full revision before touching the store; a failed commit
	// leaves the belief exactly as it was.
	if err := s.beliefs.CommitConfidence(ctx, beliefID, newConfidence); err != nil {
		return nil, err
	}

	result.ShouldUpdate = true
	result.NewConfidence = newConfidence

	s.logger.Debug("belief revised",
		zap.String("belief_id", beliefID.String()),
		zap.Float64("old_confidence", belief.Confidence),
		zap.Float64("new_confidence", newConfidence),
		zap.Float64("precision_weighted_error", weightedErr),
		zap.Float64("learning_rate", lr))

	switch belief.Status {
	case domain.BeliefActive:
		if newConfidence <= ArchiveConfidenceThreshold && len(recent) >= ArchiveMinEvidence {
			if err := s.beliefs.Archive(ctx, beliefID); err != nil {
				return nil, err
			}
			result.Archived = true
			s.events.Publish(bus.TopicBeliefArchived, beliefID)
			s.logger.Info("belief archived",
				zap.String("belief_id", beliefID.String()),
				zap.Float64("confidence", newConfidence))
		}
	case domain.BeliefArchived:
		// Archived beliefs stay recoverable: strong new evidence brings
		// them back rather than leaving them dead.
		if newConfidence >= RecoveryConfidenceThreshold {
			if err := s.beliefs.Recover(ctx, beliefID); err != nil {
				return nil, err
			}
			result.Recovered = true
			s.logger.Info("belief recovered",
				zap.String("belief_id", beliefID.String()),
				zap.Float64("confidence", newConfidence))
		}
	}

	return result, nil
}

// Recover reevaluates an archived belief against its fresh evidence. Without
// enough new samples there is nothing to recover from and the request is
// refused; with evidence, the regular revision decides whether the belief
// comes back.
func (s *UpdaterService) Recover(ctx context.Context, beliefID uuid.UUID) (*UpdateResult, error) {
	belief, err := s.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		return nil, domain.NewValidationError(beliefID.String(), "unknown belief")
	}
	if belief.Status != domain.BeliefArchived {
		return nil, domain.NewValidationError(beliefID.String(), "belief is not archived")
	}

	recent, err := s.beliefs.ReadRecentErrors(ctx, beliefID, s.errorWindow)
	if err != nil {
		return nil, err
	}
	if len(recent) < MinEvidenceCount {
		return nil, domain.NewInsufficientEvidence(beliefID.String(), len(recent), MinEvidenceCount)
	}

	return s.Update(ctx, beliefID)
}

// UpdateAll runs Update across every active belief of an agent, collecting
// per-belief results. A failure on one belief does not stop the others.
func (s *UpdaterService) UpdateAll(ctx context.Context, agentID uuid.UUID) ([]UpdateResult, error) {
	beliefs, err := s.beliefs.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(beliefs))
	for i := range beliefs {
		res, err := s.Update(ctx, beliefs[i].ID)
		if err != nil {
			s.logger.Warn("belief update failed",
				zap.String("belief_id", beliefs[i].ID.String()),
				zap.Error(err))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func learningRate(confidence float64) float64 {
	switch {
	case confidence > ConfidentThreshold:
		return LearningRateConfident
	case confidence > ModerateThreshold:
		return LearningRateModerate
	default:
		return LearningRateUncertain
	}
}

// errorStats returns the mean and variance of the error window. High-variance
// evidence is discounted by the caller via mean/(1+variance).
func errorStats(errs []domain.PredictionError) (mean, variance float64) {
	n := float64(len(errs))
	if n == 0 {
		return 0, 0
	}
	for _, e := range errs {
		mean += e.Error
	}
	mean /= n

	for _, e := range errs {
		d := e.Error - mean
		variance += d * d
	}
	variance /= n
	return mean, variance
}
