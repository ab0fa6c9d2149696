package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.BeliefState) error {
	if b.Status == "" {
		b.Status = domain.BeliefActive
	}
	if b.Dimension == 0 {
		b.Dimension = len(b.Mean)
	}

	var mean *pgvector.Vector
	if len(b.Mean) > 0 {
		v := pgvector.NewVector(b.Mean)
		mean = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO beliefs (agent_id, primitive, mean, precision, dimension, confidence, evidence_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		b.AgentID, b.Primitive, mean, b.Precision, b.Dimension, b.Confidence, b.EvidenceCount, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BeliefState, error) {
	b := &domain.BeliefState{}
	var mean *pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, primitive, mean, precision, dimension, confidence, evidence_count, status, created_at, updated_at
		 FROM beliefs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.AgentID, &b.Primitive, &mean, &b.Precision, &b.Dimension, &b.Confidence, &b.EvidenceCount, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if mean != nil {
		b.Mean = mean.Slice()
	}
	return b, nil
}

func (s *BeliefStore) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.BeliefState, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, primitive, mean, precision, dimension, confidence, evidence_count, status, created_at, updated_at
		 FROM beliefs WHERE agent_id = $1 ORDER BY created_at`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beliefs []domain.BeliefState
	for rows.Next() {
		var b domain.BeliefState
		var mean *pgvector.Vector
		if err := rows.Scan(&b.ID, &b.AgentID, &b.Primitive, &mean, &b.Precision, &b.Dimension, &b.Confidence, &b.EvidenceCount, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if mean != nil {
			b.Mean = mean.Slice()
		}
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) AppendError(ctx context.Context, id uuid.UUID, errVal, variance float64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO belief_errors (belief_id, error, variance) VALUES ($1, $2, $3)`,
		id, errVal, variance,
	); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE beliefs SET evidence_count = evidence_count + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *BeliefStore) ReadRecentErrors(ctx context.Context, id uuid.UUID, window int) ([]domain.PredictionError, error) {
	if window <= 0 {
		window = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT belief_id, error, variance, recorded_at
		 FROM belief_errors WHERE belief_id = $1
		 ORDER BY recorded_at DESC LIMIT $2`,
		id, window,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []domain.PredictionError
	for rows.Next() {
		var e domain.PredictionError
		if err := rows.Scan(&e.BeliefID, &e.Error, &e.Variance, &e.RecordedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// CommitConfidence applies one validated revision. The single UPDATE either
// lands fully or not at all; there is no intermediate state to observe.
func (s *BeliefStore) CommitConfidence(ctx context.Context, id uuid.UUID, confidence float64) error {
	if confidence < domain.MinConfidence || confidence > domain.MaxConfidence {
		return fmt.Errorf("confidence %f outside [%f, %f]", confidence, domain.MinConfidence, domain.MaxConfidence)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET confidence = $2, updated_at = NOW() WHERE id = $1`,
		id, confidence,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) Archive(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.BeliefArchived)
}

func (s *BeliefStore) Recover(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, domain.BeliefActive)
}

func (s *BeliefStore) setStatus(ctx context.Context, id uuid.UUID, status domain.BeliefStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
