package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStubNotFound = errors.New("not found")

type stubBeliefStore struct {
	mu      sync.Mutex
	beliefs map[uuid.UUID]*domain.BeliefState
	errors  map[uuid.UUID][]domain.PredictionError
}

func newStubBeliefStore() *stubBeliefStore {
	return &stubBeliefStore{
		beliefs: make(map[uuid.UUID]*domain.BeliefState),
		errors:  make(map[uuid.UUID][]domain.PredictionError),
	}
}

func (s *stubBeliefStore) Create(_ context.Context, b *domain.BeliefState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	s.beliefs[b.ID] = &cp
	return nil
}

func (s *stubBeliefStore) GetByID(_ context.Context, id uuid.UUID) (*domain.BeliefState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beliefs[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *stubBeliefStore) ListByAgent(_ context.Context, agentID uuid.UUID) ([]domain.BeliefState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.BeliefState
	for _, b := range s.beliefs {
		if b.AgentID == agentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *stubBeliefStore) AppendError(_ context.Context, id uuid.UUID, errVal, variance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[id] = append(s.errors[id], domain.PredictionError{BeliefID: id, Error: errVal, Variance: variance})
	return nil
}

func (s *stubBeliefStore) ReadRecentErrors(_ context.Context, id uuid.UUID, window int) ([]domain.PredictionError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs := s.errors[id]
	if len(errs) > window {
		errs = errs[len(errs)-window:]
	}
	return append([]domain.PredictionError(nil), errs...), nil
}

func (s *stubBeliefStore) CommitConfidence(_ context.Context, id uuid.UUID, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.beliefs[id]; ok {
		b.Confidence = confidence
	}
	return nil
}

func (s *stubBeliefStore) Archive(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.beliefs[id]; ok {
		b.Status = domain.BeliefArchived
	}
	return nil
}

func (s *stubBeliefStore) Recover(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.beliefs[id]; ok {
		b.Status = domain.BeliefActive
		return nil
	}
	return errStubNotFound
}

type stubParticleStore struct {
	mu        sync.Mutex
	particles map[uuid.UUID]*domain.MetacognitiveParticle
}

func newStubParticleStore() *stubParticleStore {
	return &stubParticleStore{particles: make(map[uuid.UUID]*domain.MetacognitiveParticle)}
}

func (s *stubParticleStore) Upsert(_ context.Context, p *domain.MetacognitiveParticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.particles[p.ID] = &cp
	return nil
}

func (s *stubParticleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MetacognitiveParticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.particles[id]
	if !ok {
		return nil, errStubNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubParticleStore) GetByAgent(_ context.Context, agentID uuid.UUID) ([]domain.MetacognitiveParticle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MetacognitiveParticle
	for _, p := range s.particles {
		if p.AgentID == agentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func beliefRouter(store domain.BeliefStore) *chi.Mux {
	updater := service.NewUpdaterService(store, bus.New(zap.NewNop()), zap.NewNop())
	h := NewBeliefHandler(store, updater)

	r := chi.NewRouter()
	r.Post("/v1/beliefs", h.Create)
	r.Get("/v1/beliefs/{id}", h.GetByID)
	r.Post("/v1/beliefs/{id}/errors", h.RecordError)
	r.Post("/v1/beliefs/{id}/update", h.Update)
	r.Post("/v1/beliefs/{id}/recover", h.Recover)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBeliefHandler_CreateAndFetch(t *testing.T) {
	store := newStubBeliefStore()
	r := beliefRouter(store)

	rec := postJSON(t, r, "/v1/beliefs", map[string]any{
		"agent_id":  uuid.New(),
		"primitive": "self_capability",
		"mean":      []float32{0.1, 0.2},
		"precision": []float64{1.0, 2.0},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.BeliefState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.BeliefActive, created.Status)
	assert.Equal(t, 0.5, created.Confidence)

	req := httptest.NewRequest(http.MethodGet, "/v1/beliefs/"+created.ID.String(), nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestBeliefHandler_CreateRejectsDimensionMismatch(t *testing.T) {
	r := beliefRouter(newStubBeliefStore())

	rec := postJSON(t, r, "/v1/beliefs", map[string]any{
		"agent_id":  uuid.New(),
		"primitive": "world_model",
		"mean":      []float32{0.1, 0.2},
		"precision": []float64{1.0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBeliefHandler_RecordErrorUnknownBelief(t *testing.T) {
	r := beliefRouter(newStubBeliefStore())

	rec := postJSON(t, r, "/v1/beliefs/"+uuid.NewString()+"/errors", map[string]any{
		"error": 0.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBeliefHandler_UpdateBelowEvidenceThreshold(t *testing.T) {
	store := newStubBeliefStore()
	r := beliefRouter(store)

	b := &domain.BeliefState{AgentID: uuid.New(), Primitive: "p", Confidence: 0.7, Status: domain.BeliefActive}
	require.NoError(t, store.Create(context.Background(), b))

	for i := 0; i < 3; i++ {
		rec := postJSON(t, r, "/v1/beliefs/"+b.ID.String()+"/errors", map[string]any{"error": 0.4})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := postJSON(t, r, "/v1/beliefs/"+b.ID.String()+"/update", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.UpdateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.ShouldUpdate)
	assert.Equal(t, 0.7, res.NewConfidence)
}

func TestBeliefHandler_RecoverWithoutEvidenceConflicts(t *testing.T) {
	store := newStubBeliefStore()
	r := beliefRouter(store)

	b := &domain.BeliefState{AgentID: uuid.New(), Primitive: "p", Confidence: 0.6, Status: domain.BeliefArchived}
	require.NoError(t, store.Create(context.Background(), b))

	rec := postJSON(t, r, "/v1/beliefs/"+b.ID.String()+"/recover", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var ce domain.CoreError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ce))
	assert.Equal(t, domain.KindInsufficientEvidence, ce.Kind)
}

func TestParticleHandler_ClassifyWithoutPersist(t *testing.T) {
	classifier := service.NewClassifierService(newStubParticleStore(), zap.NewNop())
	h := NewParticleHandler(classifier, newStubParticleStore())

	r := chi.NewRouter()
	r.Post("/v1/classify", h.Classify)

	rec := postJSON(t, r, "/v1/classify", map[string]any{
		"agent_id": uuid.New(),
		"blanket": domain.MarkovBlanket{
			Internal: []string{"i1"},
			Active:   []string{"a1"},
			Edges: []domain.BlanketEdge{
				{From: domain.PartitionInternal, To: domain.PartitionLower},
				{From: domain.PartitionActive, To: domain.PartitionLower},
			},
			NestedDepth: 1,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var c service.Classification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, domain.ParticleActiveMetacognitive, c.Type)
	assert.True(t, c.Agentic)
}

func TestParticleHandler_ClassifyDepthViolation(t *testing.T) {
	classifier := service.NewClassifierService(newStubParticleStore(), zap.NewNop())
	h := NewParticleHandler(classifier, newStubParticleStore())

	r := chi.NewRouter()
	r.Post("/v1/classify", h.Classify)

	rec := postJSON(t, r, "/v1/classify", map[string]any{
		"agent_id": uuid.New(),
		"blanket": domain.MarkovBlanket{
			NestedDepth: domain.DefaultMaxNestingLevel + 1,
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
