package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/bus"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Forecaster constants. Learning speed scales with surprise; meta-precision
// moves slowly in both directions so one bad cycle does not crater the
// hyper-model's self-trust.
const (
	DefaultForecastDeadline = 100 * time.Millisecond

	BaseLearningAlpha = 0.15
	MinLearningAlpha  = 0.01
	MaxLearningAlpha  = 0.3

	DefaultMetaPrecision = 0.5
	MinMetaPrecision     = 0.05
	MaxMetaPrecision     = 0.99
	MetaPrecisionDecay   = 0.85 // applied per directional error streak
	MetaPrecisionRecover = 1.03

	// Streak of same-direction errors on one layer that counts as
	// systematic bias rather than noise.
	DirectionalStreakThreshold = 3

	DefaultTemporalDepth  = 3
	DefaultLayerWeight    = 1.0
	ActivityBlend         = 0.3 // forecast pull toward current layer activity
	ErrorCorrectionFactor = 0.2

	forecastErrorWindow = 30
)

// ForecasterService is the hyper-model: it forecasts precision allocation
// ahead of inference, learns from the divergence between forecast and observed
// need, and broadcasts every regenerated profile to its subscribers.
type ForecasterService struct {
	profiles domain.ProfileStore
	events   *bus.Bus
	logger   *zap.Logger

	deadline time.Duration
}

func NewForecasterService(profiles domain.ProfileStore, events *bus.Bus, logger *zap.Logger) *ForecasterService {
	return &ForecasterService{
		profiles: profiles,
		events:   events,
		logger:   logger,
		deadline: DefaultForecastDeadline,
	}
}

func (s *ForecasterService) SetDeadline(d time.Duration) {
	if d > 0 {
		s.deadline = d
	}
}

// Forecast regenerates the precision profile for the coming cycle. The
// forecast runs under a hard deadline: when it cannot complete in time the
// previous profile is returned as the fallback inside a timeout error, so the
// cycle proceeds on stale but usable weights.
func (s *ForecasterService) Forecast(ctx context.Context, input domain.ForecastInput) (*domain.PrecisionProfile, error) {
	if input.AgentID == uuid.Nil {
		return nil, domain.NewValidationError("", "agent id is required")
	}
	for id, ls := range input.LayerStates {
		if ls.Activity < 0 {
			return nil, domain.NewValidationError(id, "layer activity must be non-negative")
		}
	}

	fctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	prev, err := s.profiles.GetLatest(fctx, input.AgentID)
	if err != nil {
		prev = nil // first cycle, forecast from defaults
	}

	type outcome struct {
		profile *domain.PrecisionProfile
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		p := s.generate(prev, input)
		done <- outcome{p, s.profiles.SaveProfile(fctx, p)}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			// A save that died on the deadline is still a timeout, even
			// when the result lands before the fctx.Done branch fires.
			if errors.Is(out.err, context.DeadlineExceeded) {
				return prev, domain.NewForecastTimeout(input.AgentID.String(), prev)
			}
			return nil, out.err
		}
		s.events.Publish(bus.TopicPrecisionProfile, out.profile.Clone())
		s.logger.Debug("precision profile regenerated",
			zap.String("agent_id", input.AgentID.String()),
			zap.Int("layers", len(out.profile.LayerWeights)),
			zap.Float64("meta_precision", out.profile.MetaPrecision))
		return out.profile, nil
	case <-fctx.Done():
		s.logger.Warn("forecast deadline exceeded, falling back to previous profile",
			zap.String("agent_id", input.AgentID.String()),
			zap.Duration("deadline", s.deadline))
		return prev, domain.NewForecastTimeout(input.AgentID.String(), prev)
	}
}

// generate builds the new profile: previous weights pulled toward observed
// layer activity, corrected by the recent error log, with meta-precision
// degraded on systematic directional bias.
func (s *ForecasterService) generate(prev *domain.PrecisionProfile, input domain.ForecastInput) *domain.PrecisionProfile {
	p := &domain.PrecisionProfile{
		ID:                 uuid.New(),
		AgentID:            input.AgentID,
		LayerWeights:       make(map[string]float64, len(input.LayerStates)),
		ModalityWeights:    make(map[string]float64),
		TemporalDepth:      DefaultTemporalDepth,
		MetaPrecision:      DefaultMetaPrecision,
		ContextFingerprint: fingerprint(input.Context),
		GeneratedAt:        time.Now().UTC(),
	}
	if prev != nil {
		p.TemporalDepth = prev.TemporalDepth
		p.MetaPrecision = prev.MetaPrecision
	}

	for id, ls := range input.LayerStates {
		w := DefaultLayerWeight
		if prev != nil {
			if pw, ok := prev.LayerWeights[id]; ok {
				w = pw
			}
		}
		// Active layers earn precision; idle ones shed it.
		w = w*(1-ActivityBlend) + ls.Activity*ActivityBlend
		p.LayerWeights[id] = w
	}

	// Correct for the errors observed since the last cycle: over-confident
	// forecasts pull the layer down, under-confident ones push it up.
	streaks := make(map[string]int)
	lastDirection := make(map[string]domain.ErrorDirection)
	for _, e := range input.RecentErrors {
		w, ok := p.LayerWeights[e.LayerID]
		if !ok {
			continue
		}
		correction := ErrorCorrectionFactor * e.Magnitude
		if e.Direction == domain.DirectionOverConfident {
			correction = -correction
		}
		p.LayerWeights[e.LayerID] = math.Max(0, w+correction)

		if lastDirection[e.LayerID] == e.Direction {
			streaks[e.LayerID]++
		} else {
			streaks[e.LayerID] = 1
			lastDirection[e.LayerID] = e.Direction
		}
	}

	// Persistent same-direction misses mean the hyper-model is biased, not
	// unlucky. Its trust in its own forecasts drops until the bias clears.
	biased := false
	for layer, streak := range streaks {
		if streak >= DirectionalStreakThreshold {
			biased = true
			s.logger.Debug("directional forecast bias detected",
				zap.String("agent_id", input.AgentID.String()),
				zap.String("layer_id", layer),
				zap.Int("streak", streak))
		}
	}
	if biased {
		p.MetaPrecision *= MetaPrecisionDecay
	} else if len(input.RecentErrors) > 0 {
		p.MetaPrecision *= MetaPrecisionRecover
	}
	p.MetaPrecision = math.Min(MaxMetaPrecision, math.Max(MinMetaPrecision, p.MetaPrecision))

	for id, ls := range input.LayerStates {
		if ls.Modality == "" {
			continue
		}
		p.ModalityWeights[ls.Modality] += p.LayerWeights[id]
	}

	return p
}

// Learn folds the observed per-layer precision need back into the latest
// profile. The step size scales with surprise: routine divergence barely
// moves the weights, large misses move them fast, and both ends are clamped.
func (s *ForecasterService) Learn(ctx context.Context, observed domain.ObservedNeed) (*domain.PrecisionProfile, error) {
	profile, err := s.profiles.GetLatest(ctx, observed.AgentID)
	if err != nil {
		return nil, domain.NewValidationError(observed.AgentID.String(), "no profile to learn against")
	}

	now := observed.ObservedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var errs []domain.PrecisionError
	for layer, actual := range observed.LayerActual {
		predicted, ok := profile.LayerWeights[layer]
		if !ok {
			predicted = DefaultLayerWeight
		}

		surprise := math.Abs(actual - predicted)
		alpha := math.Min(MaxLearningAlpha, math.Max(MinLearningAlpha, BaseLearningAlpha*surprise))
		profile.LayerWeights[layer] = (1-alpha)*predicted + alpha*actual

		direction := domain.DirectionUnderConfident
		if predicted > actual {
			direction = domain.DirectionOverConfident
		}
		errs = append(errs, domain.PrecisionError{
			AgentID:    observed.AgentID,
			LayerID:    layer,
			Predicted:  predicted,
			Actual:     actual,
			Magnitude:  surprise,
			Direction:  direction,
			RecordedAt: now,
		})
	}

	if len(errs) > 0 {
		if err := s.profiles.AppendErrors(ctx, errs); err != nil {
			return nil, err
		}
	}

	profile.GeneratedAt = time.Now().UTC()
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.events.Publish(bus.TopicPrecisionProfile, profile.Clone())
	return profile, nil
}

// RecentErrors exposes the forecast-error log for the next forecast's input.
func (s *ForecasterService) RecentErrors(ctx context.Context, agentID uuid.UUID) ([]domain.PrecisionError, error) {
	return s.profiles.RecentErrors(ctx, agentID, forecastErrorWindow)
}

func fingerprint(contextDescription string) string {
	h := fnv.New64a()
	h.Write([]byte(contextDescription))
	return fmt.Sprintf("%016x", h.Sum64())
}
