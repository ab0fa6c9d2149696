package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
)

var errNotFound = errors.New("not found")

type mockBeliefStore struct {
	mu      sync.Mutex
	beliefs map[uuid.UUID]*domain.BeliefState
	errors  map[uuid.UUID][]domain.PredictionError

	commitErr error
}

func newMockBeliefStore() *mockBeliefStore {
	return &mockBeliefStore{
		beliefs: make(map[uuid.UUID]*domain.BeliefState),
		errors:  make(map[uuid.UUID][]domain.PredictionError),
	}
}

func (m *mockBeliefStore) Create(_ context.Context, b *domain.BeliefState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.beliefs[b.ID] = &cp
	return nil
}

func (m *mockBeliefStore) GetByID(_ context.Context, id uuid.UUID) (*domain.BeliefState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beliefs[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBeliefStore) ListByAgent(_ context.Context, agentID uuid.UUID) ([]domain.BeliefState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BeliefState
	for _, b := range m.beliefs {
		if b.AgentID == agentID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *mockBeliefStore) AppendError(_ context.Context, id uuid.UUID, errVal, variance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[id] = append(m.errors[id], domain.PredictionError{BeliefID: id, Error: errVal, Variance: variance})
	return nil
}

func (m *mockBeliefStore) ReadRecentErrors(_ context.Context, id uuid.UUID, window int) ([]domain.PredictionError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := m.errors[id]
	if len(errs) > window {
		errs = errs[len(errs)-window:]
	}
	out := make([]domain.PredictionError, len(errs))
	copy(out, errs)
	return out, nil
}

func (m *mockBeliefStore) CommitConfidence(_ context.Context, id uuid.UUID, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	b, ok := m.beliefs[id]
	if !ok {
		return errNotFound
	}
	b.Confidence = confidence
	return nil
}

func (m *mockBeliefStore) Archive(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beliefs[id]
	if !ok {
		return errNotFound
	}
	b.Status = domain.BeliefArchived
	return nil
}

func (m *mockBeliefStore) Recover(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beliefs[id]
	if !ok {
		return errNotFound
	}
	b.Status = domain.BeliefActive
	return nil
}

type mockParticleStore struct {
	mu        sync.Mutex
	particles map[uuid.UUID]*domain.MetacognitiveParticle
}

func newMockParticleStore() *mockParticleStore {
	return &mockParticleStore{particles: make(map[uuid.UUID]*domain.MetacognitiveParticle)}
}

func (m *mockParticleStore) Upsert(_ context.Context, p *domain.MetacognitiveParticle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.particles[p.ID] = &cp
	return nil
}

func (m *mockParticleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MetacognitiveParticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.particles[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockParticleStore) GetByAgent(_ context.Context, agentID uuid.UUID) ([]domain.MetacognitiveParticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MetacognitiveParticle
	for _, p := range m.particles {
		if p.AgentID == agentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*domain.PrecisionProfile
	errLog   map[uuid.UUID][]domain.PrecisionError
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{
		profiles: make(map[uuid.UUID]*domain.PrecisionProfile),
		errLog:   make(map[uuid.UUID][]domain.PrecisionError),
	}
}

func (m *mockProfileStore) SaveProfile(_ context.Context, p *domain.PrecisionProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.AgentID] = p.Clone()
	return nil
}

func (m *mockProfileStore) GetLatest(_ context.Context, agentID uuid.UUID) (*domain.PrecisionProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[agentID]
	if !ok {
		return nil, errNotFound
	}
	return p.Clone(), nil
}

func (m *mockProfileStore) AppendErrors(_ context.Context, errs []domain.PrecisionError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range errs {
		m.errLog[e.AgentID] = append(m.errLog[e.AgentID], e)
	}
	return nil
}

func (m *mockProfileStore) RecentErrors(_ context.Context, agentID uuid.UUID, limit int) ([]domain.PrecisionError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errs := m.errLog[agentID]
	if len(errs) > limit {
		errs = errs[len(errs)-limit:]
	}
	out := make([]domain.PrecisionError, len(errs))
	copy(out, errs)
	return out, nil
}
