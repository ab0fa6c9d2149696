package domain

import (
	"context"

	"github.com/google/uuid"
)

// BeliefStore persists belief primitives and their accumulated prediction
// errors. The external inference engine feeds evidence in through AppendError;
// the updater reads it back and commits revised confidence atomically.
type BeliefStore interface {
	Create(ctx context.Context, b *BeliefState) error
	GetByID(ctx context.Context, id uuid.UUID) (*BeliefState, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]BeliefState, error)

	// Evidence accumulation
	AppendError(ctx context.Context, id uuid.UUID, errVal, variance float64) error
	ReadRecentErrors(ctx context.Context, id uuid.UUID, window int) ([]PredictionError, error)

	// CommitConfidence fully applies a revision or fails without side effects.
	CommitConfidence(ctx context.Context, id uuid.UUID, confidence float64) error

	Archive(ctx context.Context, id uuid.UUID) error
	Recover(ctx context.Context, id uuid.UUID) error
}

// ParticleStore persists classified particles and their nesting relationships
// across restarts. Nesting is a flat parent_id + nesting_level table; depth is
// validated on every write.
type ParticleStore interface {
	Upsert(ctx context.Context, p *MetacognitiveParticle) error
	GetByID(ctx context.Context, id uuid.UUID) (*MetacognitiveParticle, error)
	GetByAgent(ctx context.Context, agentID uuid.UUID) ([]MetacognitiveParticle, error)
}

// ProfileStore persists precision profiles and the forecast-error log.
type ProfileStore interface {
	SaveProfile(ctx context.Context, p *PrecisionProfile) error
	GetLatest(ctx context.Context, agentID uuid.UUID) (*PrecisionProfile, error)
	AppendErrors(ctx context.Context, errs []PrecisionError) error
	RecentErrors(ctx context.Context, agentID uuid.UUID, limit int) ([]PrecisionError, error)
}
