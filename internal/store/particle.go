package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticleStore struct {
	db *pgxpool.Pool
}

func NewParticleStore(db *pgxpool.Pool) *ParticleStore {
	return &ParticleStore{db: db}
}

// Upsert writes a particle, revalidating the nesting invariants against the
// stored parent: the parent must exist and sit exactly one level below.
func (s *ParticleStore) Upsert(ctx context.Context, p *domain.MetacognitiveParticle) error {
	if !domain.ValidParticleType(string(p.Type)) {
		return fmt.Errorf("invalid particle type %q", p.Type)
	}
	if p.NestingLevel > domain.DefaultMaxNestingLevel {
		return fmt.Errorf("nesting level %d exceeds maximum %d", p.NestingLevel, domain.DefaultMaxNestingLevel)
	}

	if p.ParentID != nil {
		var parentLevel int
		err := s.db.QueryRow(ctx,
			`SELECT nesting_level FROM particles WHERE id = $1`,
			*p.ParentID,
		).Scan(&parentLevel)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("parent particle %s: %w", p.ParentID, ErrNotFound)
			}
			return err
		}
		if p.NestingLevel != parentLevel+1 {
			return fmt.Errorf("nesting level %d does not follow parent level %d", p.NestingLevel, parentLevel)
		}
	} else if p.NestingLevel > 0 {
		return fmt.Errorf("nesting level %d requires a parent", p.NestingLevel)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO particles (id, agent_id, type, nesting_level, agentic, parent_id, belief_id, confidence, classified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   type = EXCLUDED.type,
		   nesting_level = EXCLUDED.nesting_level,
		   agentic = EXCLUDED.agentic,
		   parent_id = EXCLUDED.parent_id,
		   belief_id = EXCLUDED.belief_id,
		   confidence = EXCLUDED.confidence,
		   classified_at = EXCLUDED.classified_at`,
		p.ID, p.AgentID, p.Type, p.NestingLevel, p.Agentic, p.ParentID, p.BeliefID, p.Confidence, p.ClassifiedAt,
	)
	return err
}

func (s *ParticleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MetacognitiveParticle, error) {
	p := &domain.MetacognitiveParticle{}
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, type, nesting_level, agentic, parent_id, belief_id, confidence, classified_at
		 FROM particles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.AgentID, &p.Type, &p.NestingLevel, &p.Agentic, &p.ParentID, &p.BeliefID, &p.Confidence, &p.ClassifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *ParticleStore) GetByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.MetacognitiveParticle, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, type, nesting_level, agentic, parent_id, belief_id, confidence, classified_at
		 FROM particles WHERE agent_id = $1 ORDER BY nesting_level, classified_at`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var particles []domain.MetacognitiveParticle
	for rows.Next() {
		var p domain.MetacognitiveParticle
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Type, &p.NestingLevel, &p.Agentic, &p.ParentID, &p.BeliefID, &p.Confidence, &p.ClassifiedAt); err != nil {
			return nil, err
		}
		particles = append(particles, p)
	}
	return particles, rows.Err()
}
