package service

import (
	"context"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CycleInput is one full cognitive step: the context and layer activity for
// the forecast, plus the candidate inferences the engine proposes this cycle.
type CycleInput struct {
	AgentID     uuid.UUID                    `json:"agent_id"`
	Context     string                       `json:"context"`
	LayerStates map[string]domain.LayerState `json:"layer_states"`
	Candidates  []domain.CandidateInference  `json:"candidates"`
	BindOptions BindOptions                  `json:"bind_options"`
}

// CycleResult reports everything one cycle produced.
type CycleResult struct {
	Profile          *domain.PrecisionProfile `json:"profile"`
	ForecastDegraded bool                     `json:"forecast_degraded"`
	Binding          *domain.BindingResult    `json:"binding"`
	View             *domain.RealityView      `json:"view"`
	Updates          []UpdateResult           `json:"updates"`
	Epistemic        *domain.EpistemicState   `json:"epistemic"`
	Duration         time.Duration            `json:"duration"`
}

// Orchestrator drives the cognitive cycle: forecast precision, run the
// binding competition, integrate the winners into the reality model, fold the
// observed need back into the hyper-model, and revise beliefs. Each stage
// checks the context before starting; a cancelled cycle stops between stages,
// never mid-write.
type Orchestrator struct {
	forecaster *ForecasterService
	binder     *BinderService
	reality    *RealityService
	updater    *UpdaterService
	epistemic  *EpistemicService
	events     *bus.Bus
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewOrchestrator(
	forecaster *ForecasterService,
	binder *BinderService,
	reality *RealityService,
	updater *UpdaterService,
	epistemic *EpistemicService,
	events *bus.Bus,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		forecaster: forecaster,
		binder:     binder,
		reality:    reality,
		updater:    updater,
		epistemic:  epistemic,
		events:     events,
		metrics:    m,
		logger:     logger,
	}
}

// RunCycle executes one cognitive cycle. A forecast timeout degrades the
// cycle onto the previous profile instead of aborting it; a stale integration
// re-reads the model and retries once.
func (o *Orchestrator) RunCycle(ctx context.Context, input CycleInput) (*CycleResult, error) {
	if input.AgentID == uuid.Nil {
		return nil, domain.NewValidationError("", "agent id is required")
	}
	start := time.Now()
	result := &CycleResult{}

	// Forecast. The cycle proceeds on the fallback profile when the
	// forecast misses its deadline.
	recentErrors, err := o.forecaster.RecentErrors(ctx, input.AgentID)
	if err != nil {
		recentErrors = nil
	}
	profile, err := o.forecaster.Forecast(ctx, domain.ForecastInput{
		AgentID:      input.AgentID,
		Context:      input.Context,
		LayerStates:  input.LayerStates,
		RecentErrors: recentErrors,
	})
	if err != nil {
		if !domain.IsKind(err, domain.KindForecastTimeout) {
			return nil, err
		}
		result.ForecastDegraded = true
		if o.metrics != nil {
			o.metrics.ForecastTimeouts.Inc()
		}
	}
	result.Profile = profile

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Weight each candidate's precision by the forecast for its layer.
	candidates := make([]domain.CandidateInference, len(input.Candidates))
	copy(candidates, input.Candidates)
	if profile != nil {
		for i := range candidates {
			if w, ok := profile.LayerWeights[candidates[i].SourceLayer]; ok {
				candidates[i].Precision *= w
			}
		}
	}

	// Bind against a snapshot, then integrate against the snapshot's
	// version. A concurrent writer moves the version; one retry against
	// the fresh snapshot resolves the common race.
	view := o.reality.Snapshot(input.AgentID)
	binding, err := o.binder.Bind(ctx, view, candidates, input.BindOptions)
	if err != nil {
		return nil, err
	}
	result.Binding = binding

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	integrated, err := o.reality.Integrate(ctx, input.AgentID, view.Version, binding)
	if domain.IsKind(err, domain.KindStaleState) {
		if o.metrics != nil {
			o.metrics.StaleIntegrations.Inc()
		}
		o.logger.Debug("model moved during cycle, rebinding once",
			zap.String("agent_id", input.AgentID.String()))
		view = o.reality.Snapshot(input.AgentID)
		binding, err = o.binder.Bind(ctx, view, candidates, input.BindOptions)
		if err != nil {
			return nil, err
		}
		result.Binding = binding
		integrated, err = o.reality.Integrate(ctx, input.AgentID, view.Version, binding)
	}
	if err != nil {
		return nil, err
	}
	result.View = integrated

	if o.metrics != nil {
		o.metrics.BindingAdmitted.Observe(float64(binding.AdmittedCount))
		o.metrics.BindingRejected.Add(float64(binding.RejectedCount))
		if binding.Retained {
			o.metrics.BindingRetained.Inc()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Fold the observed need back into the hyper-model.
	if _, err := o.forecaster.Learn(ctx, domain.ObservedNeed{
		AgentID:     input.AgentID,
		LayerActual: observedNeed(input, binding),
		ObservedAt:  time.Now().UTC(),
	}); err != nil {
		o.logger.Warn("forecast learning failed", zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Revise beliefs from accumulated evidence.
	updates, err := o.updater.UpdateAll(ctx, input.AgentID)
	if err != nil {
		o.logger.Warn("belief revision pass failed", zap.Error(err))
	} else {
		result.Updates = updates
		if o.metrics != nil {
			for i := range updates {
				if updates[i].ShouldUpdate {
					o.metrics.BeliefRevisions.Inc()
				}
				if updates[i].Archived {
					o.metrics.BeliefsArchived.Inc()
				}
			}
		}
	}

	if epi, err := o.epistemic.Assess(ctx, input.AgentID, input.LayerStates); err == nil {
		result.Epistemic = epi
	}

	result.Duration = time.Since(start)
	if o.metrics != nil {
		o.metrics.CyclesTotal.Inc()
		o.metrics.CycleDuration.Observe(result.Duration.Seconds())
	}
	o.events.Publish(bus.TopicCycleCompleted, result)

	o.logger.Info("cognitive cycle completed",
		zap.String("agent_id", input.AgentID.String()),
		zap.Int("admitted", binding.AdmittedCount),
		zap.Int("rejected", binding.RejectedCount),
		zap.Bool("forecast_degraded", result.ForecastDegraded),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// observedNeed derives the precision each layer actually required from the
// binding outcome: layers whose candidates won needed what they carried,
// layers whose candidates all lost were over-weighted.
func observedNeed(input CycleInput, binding *domain.BindingResult) map[string]float64 {
	proposed := make(map[string]int)
	for i := range input.Candidates {
		proposed[input.Candidates[i].SourceLayer]++
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range binding.Admitted {
		b := &binding.Admitted[i]
		sums[b.SourceLayer] += b.Precision
		counts[b.SourceLayer]++
	}

	actual := make(map[string]float64, len(proposed))
	for layer := range proposed {
		if counts[layer] > 0 {
			actual[layer] = sums[layer] / float64(counts[layer])
		} else {
			actual[layer] = 0
		}
	}
	return actual
}
