package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) SaveProfile(ctx context.Context, p *domain.PrecisionProfile) error {
	layerWeights, err := json.Marshal(p.LayerWeights)
	if err != nil {
		return err
	}
	modalityWeights, err := json.Marshal(p.ModalityWeights)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO precision_profiles (id, agent_id, layer_weights, modality_weights, temporal_depth, meta_precision, context_fingerprint, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   layer_weights = EXCLUDED.layer_weights,
		   modality_weights = EXCLUDED.modality_weights,
		   temporal_depth = EXCLUDED.temporal_depth,
		   meta_precision = EXCLUDED.meta_precision,
		   context_fingerprint = EXCLUDED.context_fingerprint,
		   generated_at = EXCLUDED.generated_at`,
		p.ID, p.AgentID, layerWeights, modalityWeights, p.TemporalDepth, p.MetaPrecision, p.ContextFingerprint, p.GeneratedAt,
	)
	return err
}

func (s *ProfileStore) GetLatest(ctx context.Context, agentID uuid.UUID) (*domain.PrecisionProfile, error) {
	p := &domain.PrecisionProfile{}
	var layerWeights, modalityWeights []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, layer_weights, modality_weights, temporal_depth, meta_precision, context_fingerprint, generated_at
		 FROM precision_profiles WHERE agent_id = $1
		 ORDER BY generated_at DESC LIMIT 1`,
		agentID,
	).Scan(&p.ID, &p.AgentID, &layerWeights, &modalityWeights, &p.TemporalDepth, &p.MetaPrecision, &p.ContextFingerprint, &p.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(layerWeights, &p.LayerWeights); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(modalityWeights, &p.ModalityWeights); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileStore) AppendErrors(ctx context.Context, errs []domain.PrecisionError) error {
	if len(errs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(
			`INSERT INTO precision_errors (agent_id, layer_id, predicted, actual, magnitude, direction, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.AgentID, e.LayerID, e.Predicted, e.Actual, e.Magnitude, e.Direction, e.RecordedAt,
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for range errs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProfileStore) RecentErrors(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.PrecisionError, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(ctx,
		`SELECT agent_id, layer_id, predicted, actual, magnitude, direction, recorded_at
		 FROM precision_errors WHERE agent_id = $1
		 ORDER BY recorded_at DESC LIMIT $2`,
		agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []domain.PrecisionError
	for rows.Next() {
		var e domain.PrecisionError
		if err := rows.Scan(&e.AgentID, &e.LayerID, &e.Predicted, &e.Actual, &e.Magnitude, &e.Direction, &e.RecordedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
