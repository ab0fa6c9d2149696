package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Binding capacity bounds. The working set holds about seven items; task
// complexity narrows or widens that within [5, 9].
const (
	DefaultBindingCapacity = 7
	MinBindingCapacity     = 5
	MaxBindingCapacity     = 9

	// RetentionDecay discounts the previous bound set when a cycle produces
	// no admissible candidate. The model degrades instead of going blank.
	RetentionDecay = 0.9

	// Admission gates. A candidate below either threshold never competes,
	// whatever its uncertainty reduction.
	DefaultPrecisionThreshold = 0.1
	DefaultCoherenceThreshold = 0.2

	scoringConcurrency = 8
)

// BindOptions tunes one binding competition.
type BindOptions struct {
	// Capacity overrides the default working-set size. Zero means default.
	Capacity int `json:"capacity"`
	// Complexity in [0, 1] shrinks capacity under load. 0.5 is neutral.
	Complexity float64 `json:"complexity"`
}

// EffectiveCapacity resolves the bounded working-set size.
func (o BindOptions) EffectiveCapacity() int {
	k := o.Capacity
	if k == 0 {
		k = DefaultBindingCapacity
		if o.Complexity > 0 {
			k = int(math.Round(float64(MaxBindingCapacity) - 4*o.Complexity))
		}
	}
	if k < MinBindingCapacity {
		k = MinBindingCapacity
	}
	if k > MaxBindingCapacity {
		k = MaxBindingCapacity
	}
	return k
}

// BinderService runs the binding competition: candidates are scored against
// the current model and only the strongest coherent subset is admitted. It
// holds no state of its own; the model snapshot comes in with every call.
type BinderService struct {
	logger *zap.Logger

	defaultCapacity    int
	precisionThreshold float64
	coherenceThreshold float64
}

func NewBinderService(logger *zap.Logger) *BinderService {
	return &BinderService{
		logger:             logger,
		precisionThreshold: DefaultPrecisionThreshold,
		coherenceThreshold: DefaultCoherenceThreshold,
	}
}

// SetThresholds overrides the precision and coherence admission gates.
func (s *BinderService) SetThresholds(precision, coherence float64) {
	if precision > 0 {
		s.precisionThreshold = precision
	}
	if coherence > 0 {
		s.coherenceThreshold = coherence
	}
}

// SetDefaultCapacity overrides the server-wide working-set size used when a
// request does not ask for one. Still clamped to the capacity bounds.
func (s *BinderService) SetDefaultCapacity(k int) {
	if k > 0 {
		s.defaultCapacity = k
	}
}

// Bind scores every candidate concurrently, gates out those below the
// precision or coherence thresholds, then admits the top ones by binding
// strength up to the effective capacity. Zero-strength candidates are never
// admitted regardless of remaining capacity. When nothing survives and the
// model already holds a bound set, that set is retained with decay.
func (s *BinderService) Bind(ctx context.Context, view *domain.RealityView, candidates []domain.CandidateInference, opts BindOptions) (*domain.BindingResult, error) {
	for i := range candidates {
		if candidates[i].Precision < 0 {
			return nil, domain.NewValidationError(candidates[i].ID, "candidate precision must be non-negative")
		}
	}

	if opts.Capacity == 0 && opts.Complexity == 0 {
		opts.Capacity = s.defaultCapacity
	}
	capacity := opts.EffectiveCapacity()
	scored := make([]domain.BoundInference, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoringConcurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = s.score(view, candidates[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Scoring may have consumed the whole budget; admission must not run on
	// a dead context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Ties break on id so identical inputs always admit the same set.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].BindingStrength != scored[j].BindingStrength {
			return scored[i].BindingStrength > scored[j].BindingStrength
		}
		return scored[i].ID < scored[j].ID
	})

	now := time.Now().UTC()
	result := &domain.BindingResult{}
	for _, b := range scored {
		if b.Precision < s.precisionThreshold || b.Coherence < s.coherenceThreshold {
			result.RejectedCount++
			continue
		}
		if b.BindingStrength <= 0 || len(result.Admitted) >= capacity {
			result.RejectedCount++
			continue
		}
		b.BoundAt = now
		result.Admitted = append(result.Admitted, b)
	}
	result.AdmittedCount = len(result.Admitted)

	if result.AdmittedCount == 0 && len(view.Bound) > 0 {
		retained := make([]domain.BoundInference, len(view.Bound))
		copy(retained, view.Bound)
		for i := range retained {
			retained[i].BindingStrength *= RetentionDecay
		}
		result.Admitted = retained
		result.AdmittedCount = len(retained)
		result.Retained = true
		s.logger.Debug("no candidate admitted, retaining previous bound set",
			zap.String("agent_id", view.AgentID.String()),
			zap.Int("retained", len(retained)))
	}

	if result.RejectedCount > 0 && len(candidates) > capacity {
		s.logger.Debug("binding competition over capacity",
			zap.String("agent_id", view.AgentID.String()),
			zap.Int("candidates", len(candidates)),
			zap.Int("capacity", capacity))
	}

	return result, nil
}

// score computes coherence against the current bound set and the entropy
// change admitting the candidate would cause. An empty model offers nothing to
// cohere with, so coherence starts at 1.
func (s *BinderService) score(view *domain.RealityView, c domain.CandidateInference) domain.BoundInference {
	coherence := 1.0
	if len(view.Bound) > 0 {
		var sum float64
		for i := range view.Bound {
			sum += domain.CosineSimilarity(c.Embedding, view.Bound[i].Embedding)
		}
		coherence = sum / float64(len(view.Bound))
		if coherence < 0 {
			coherence = 0
		}
	}

	ur := view.UncertaintyReduction(c)

	return domain.BoundInference{
		CandidateInference:   c,
		Coherence:            coherence,
		UncertaintyReduction: ur,
		BindingStrength:      domain.Strength(c.Precision, coherence, ur),
	}
}
