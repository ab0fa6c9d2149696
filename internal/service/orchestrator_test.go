package service

import (
	"context"
	"testing"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cycleFixture struct {
	orchestrator *Orchestrator
	beliefs      *mockBeliefStore
	profiles     *mockProfileStore
	reality      *RealityService
	events       *bus.Bus
}

func newCycleFixture() *cycleFixture {
	logger := zap.NewNop()
	events := bus.New(logger)
	beliefs := newMockBeliefStore()
	profiles := newMockProfileStore()

	reality := NewRealityService(beliefs, logger)
	forecaster := NewForecasterService(profiles, events, logger)
	binder := NewBinderService(logger)
	updater := NewUpdaterService(beliefs, events, logger)
	epistemic := NewEpistemicService(profiles, reality, logger)

	return &cycleFixture{
		orchestrator: NewOrchestrator(forecaster, binder, reality, updater, epistemic, events, nil, logger),
		beliefs:      beliefs,
		profiles:     profiles,
		reality:      reality,
		events:       events,
	}
}

func cycleInput(agentID uuid.UUID) CycleInput {
	return CycleInput{
		AgentID: agentID,
		Context: "exploration",
		LayerStates: map[string]domain.LayerState{
			"perception": {Activity: 1.0, Modality: "visual", SharesPrecision: true},
		},
		Candidates: []domain.CandidateInference{
			{ID: "c1", SourceLayer: "perception", Precision: 1.5, Entropy: 0.4, Embedding: []float32{1, 0}},
			{ID: "c2", SourceLayer: "perception", Precision: 1.0, Entropy: 0.6, Embedding: []float32{1, 0}},
		},
	}
}

func TestOrchestrator_FullCycle(t *testing.T) {
	f := newCycleFixture()
	agentID := uuid.New()

	ch, cancel := f.events.Subscribe(bus.TopicCycleCompleted, 4)
	defer cancel()

	res, err := f.orchestrator.RunCycle(context.Background(), cycleInput(agentID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Profile == nil {
		t.Fatal("cycle produced no profile")
	}
	if res.Binding == nil || res.Binding.AdmittedCount == 0 {
		t.Fatal("cycle admitted nothing")
	}
	if res.View == nil || res.View.Version != 1 {
		t.Fatalf("expected model at version 1, got %+v", res.View)
	}
	if res.Epistemic == nil {
		t.Fatal("cycle produced no epistemic state")
	}

	// The learning step recorded the divergence between forecast and need.
	errs, _ := f.profiles.RecentErrors(context.Background(), agentID, 10)
	if len(errs) == 0 {
		t.Fatal("cycle recorded no forecast errors")
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no cycle completion event published")
	}
}

func TestOrchestrator_SequentialCyclesAdvanceModel(t *testing.T) {
	f := newCycleFixture()
	agentID := uuid.New()

	for i := 1; i <= 3; i++ {
		res, err := f.orchestrator.RunCycle(context.Background(), cycleInput(agentID))
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if res.View.Version != uint64(i) {
			t.Fatalf("cycle %d: expected version %d, got %d", i, i, res.View.Version)
		}
	}
}

func TestOrchestrator_CancelledContextAbortsBetweenStages(t *testing.T) {
	f := newCycleFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orchestrator.RunCycle(ctx, cycleInput(uuid.New()))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}

	// Nothing was integrated.
	view := f.reality.Snapshot(uuid.New())
	if view.Version != 0 {
		t.Fatalf("cancelled cycle advanced the model to %d", view.Version)
	}
}

func TestOrchestrator_RequiresAgentID(t *testing.T) {
	f := newCycleFixture()

	_, err := f.orchestrator.RunCycle(context.Background(), CycleInput{})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOrchestrator_CyclesSurviveInterleavedWriters(t *testing.T) {
	f := newCycleFixture()
	agentID := uuid.New()

	if _, err := f.orchestrator.RunCycle(context.Background(), cycleInput(agentID)); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Another writer moves the model between cycles; the next cycle must
	// score against the fresh version and still integrate cleanly.
	view := f.reality.Snapshot(agentID)
	if _, err := f.reality.Integrate(context.Background(), agentID, view.Version, boundSet("interloper")); err != nil {
		t.Fatalf("concurrent integrate: %v", err)
	}

	res, err := f.orchestrator.RunCycle(context.Background(), cycleInput(agentID))
	if err != nil {
		t.Fatalf("cycle after concurrent write: %v", err)
	}
	if res.View.Version != 3 {
		t.Fatalf("expected version 3 after retry, got %d", res.View.Version)
	}
}
