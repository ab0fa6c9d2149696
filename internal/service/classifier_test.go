package service

import (
	"context"
	"testing"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func activeBlanket() domain.MarkovBlanket {
	return domain.MarkovBlanket{
		External: []string{"env"},
		Sensory:  []string{"s1"},
		Active:   []string{"a1"},
		Internal: []string{"i1"},
		Edges: []domain.BlanketEdge{
			{From: domain.PartitionInternal, To: domain.PartitionLower},
			{From: domain.PartitionActive, To: domain.PartitionLower},
		},
		NestedDepth: 1,
	}
}

func TestClassifier_CognitiveWhenNoLowerRepresentation(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())

	b := domain.MarkovBlanket{
		External: []string{"env"},
		Sensory:  []string{"s1"},
		Active:   []string{"a1"},
		Internal: []string{"i1"},
		Edges: []domain.BlanketEdge{
			{From: domain.PartitionExternal, To: domain.PartitionSensory},
			{From: domain.PartitionSensory, To: domain.PartitionInternal},
		},
	}

	c, err := s.Classify(uuid.New(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != domain.ParticleCognitive {
		t.Fatalf("expected cognitive, got %s", c.Type)
	}
	if c.Agentic {
		t.Fatal("cognitive particle must not be agentic")
	}
}

func TestClassifier_PassiveWhenRepresentsWithoutControl(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())

	b := domain.MarkovBlanket{
		Internal: []string{"i1"},
		Edges: []domain.BlanketEdge{
			{From: domain.PartitionInternal, To: domain.PartitionLower},
		},
		NestedDepth: 1,
	}

	c, err := s.Classify(uuid.New(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != domain.ParticlePassiveMetacognitive {
		t.Fatalf("expected passive_metacognitive, got %s", c.Type)
	}
}

func TestClassifier_ActiveVsStrangeHingesOnDirectEdge(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())
	agentID := uuid.New()

	b := activeBlanket()
	c, err := s.Classify(agentID, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != domain.ParticleActiveMetacognitive {
		t.Fatalf("expected active_metacognitive, got %s", c.Type)
	}
	if !c.Agentic {
		t.Fatal("active metacognitive particle must be agentic")
	}

	// Remove the direct active->lower edge and route influence through
	// sensory re-entry instead. The classification must flip to strange.
	b.Edges = []domain.BlanketEdge{
		{From: domain.PartitionInternal, To: domain.PartitionLower},
		{From: domain.PartitionActive, To: domain.PartitionSensory},
		{From: domain.PartitionSensory, To: domain.PartitionLower},
	}

	c, err = s.Classify(agentID, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != domain.ParticleStrangeMetacognitive {
		t.Fatalf("expected strange_metacognitive, got %s", c.Type)
	}
	if !c.Agentic {
		t.Fatal("strange metacognitive particle must be agentic")
	}
}

func TestClassifier_NestedAboveDepthOne(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())

	b := activeBlanket()
	b.NestedDepth = 3

	c, err := s.Classify(uuid.New(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Type != domain.ParticleNested {
		t.Fatalf("expected nested, got %s", c.Type)
	}
	if c.NestingLevel != 3 {
		t.Fatalf("expected nesting level 3, got %d", c.NestingLevel)
	}
}

func TestClassifier_DepthCapIsHardViolation(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())

	b := activeBlanket()
	b.NestedDepth = domain.DefaultMaxNestingLevel + 1

	_, err := s.Classify(uuid.New(), b)
	if err == nil {
		t.Fatal("expected core limit violation")
	}
	if !domain.IsKind(err, domain.KindCoreLimitViolation) {
		t.Fatalf("expected core_limit_violation, got %v", err)
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())
	agentID := uuid.New()
	b := activeBlanket()

	first, err := s.Classify(agentID, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		c, err := s.Classify(agentID, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Type != first.Type || c.Confidence != first.Confidence || c.NestingLevel != first.NestingLevel {
			t.Fatalf("classification changed on identical input: %+v vs %+v", c, first)
		}
	}
}

func TestClassifier_AmbiguityLowersConfidence(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())
	agentID := uuid.New()

	// Direct control only: unambiguous.
	clear, err := s.Classify(agentID, activeBlanket())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Direct control plus a re-entrant path: adjacent to strange.
	b := activeBlanket()
	b.Edges = append(b.Edges,
		domain.BlanketEdge{From: domain.PartitionActive, To: domain.PartitionSensory},
		domain.BlanketEdge{From: domain.PartitionSensory, To: domain.PartitionLower},
	)
	ambiguous, err := s.Classify(agentID, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ambiguous.Type != domain.ParticleActiveMetacognitive {
		t.Fatalf("direct edge must still win: got %s", ambiguous.Type)
	}
	if ambiguous.Confidence >= clear.Confidence {
		t.Fatalf("ambiguous blanket should lower confidence: %f >= %f",
			ambiguous.Confidence, clear.Confidence)
	}
}

func TestClassifier_StorePersistsParticle(t *testing.T) {
	store := newMockParticleStore()
	s := NewClassifierService(store, zap.NewNop())
	agentID := uuid.New()

	p, err := s.ClassifyAndStore(context.Background(), agentID, activeBlanket(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("particle not persisted: %v", err)
	}
	if got.Type != domain.ParticleActiveMetacognitive {
		t.Fatalf("unexpected stored type %s", got.Type)
	}
}

func TestClassifier_NestedParticleRequiresParent(t *testing.T) {
	s := NewClassifierService(newMockParticleStore(), zap.NewNop())

	b := activeBlanket()
	b.NestedDepth = 2

	_, err := s.ClassifyAndStore(context.Background(), uuid.New(), b, nil, nil)
	if err == nil {
		t.Fatal("expected validation error for missing parent")
	}
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
