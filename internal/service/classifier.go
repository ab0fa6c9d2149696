package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classification confidence constants. The base drops by the ambiguity penalty
// whenever the blanket structure also supports the adjacent classification.
const (
	ClassificationBaseConfidence = 0.95
	AmbiguityPenalty             = 0.15
)

// ClassifierService classifies a cognitive process into one of the five
// nested particle types from its Markov-blanket partition. Classification is
// pure structure: the same blanket always yields the same result.
type ClassifierService struct {
	particles domain.ParticleStore
	logger    *zap.Logger

	maxNestingLevel int
}

func NewClassifierService(particles domain.ParticleStore, logger *zap.Logger) *ClassifierService {
	return &ClassifierService{
		particles:       particles,
		logger:          logger,
		maxNestingLevel: domain.DefaultMaxNestingLevel,
	}
}

func (s *ClassifierService) SetMaxNestingLevel(n int) {
	if n > 0 {
		s.maxNestingLevel = n
	}
}

// Classification is the classifier output before persistence.
type Classification struct {
	Type         domain.ParticleType `json:"type"`
	NestingLevel int                 `json:"nesting_level"`
	Agentic      bool                `json:"agentic"`
	Confidence   float64             `json:"confidence"`
}

// Classify evaluates the structural rules in order, most specific last.
// Nesting beyond the configured maximum is a hard violation, never a silent
// truncation.
func (s *ClassifierService) Classify(agentID uuid.UUID, blanket domain.MarkovBlanket) (*Classification, error) {
	if blanket.NestedDepth < 0 {
		return nil, domain.NewValidationError(agentID.String(), "nested depth must be non-negative")
	}
	if blanket.NestedDepth > s.maxNestingLevel {
		return nil, domain.NewCoreLimitViolation(agentID.String(),
			fmt.Sprintf("nesting depth %d exceeds maximum %d", blanket.NestedDepth, s.maxNestingLevel))
	}
	for _, e := range blanket.Edges {
		if !domain.ValidPartition(string(e.From)) || !domain.ValidPartition(string(e.To)) {
			return nil, domain.NewValidationError(agentID.String(),
				fmt.Sprintf("unknown partition in edge %s->%s", e.From, e.To))
		}
	}

	c := &Classification{
		Type:       domain.ParticleCognitive,
		Confidence: ClassificationBaseConfidence,
	}

	if !blanket.RepresentsLower() {
		// Internal states map external states only. A lone sensory->lower
		// edge hints at an unmodelled lower level and blurs the boundary
		// with passive metacognition.
		if blanket.HasEdge(domain.PartitionSensory, domain.PartitionLower) {
			c.Confidence -= AmbiguityPenalty
		}
		return c, nil
	}

	// Beliefs about beliefs with no control path down.
	c.Type = domain.ParticlePassiveMetacognitive

	direct := blanket.ControlsLowerDirect()
	reentrant := blanket.ControlsLowerViaSensory()

	switch {
	case direct:
		c.Type = domain.ParticleActiveMetacognitive
		c.Agentic = true
		if reentrant {
			// Both paths present: adjacent to the strange classification.
			c.Confidence -= AmbiguityPenalty
		}
	case reentrant:
		// Active influence reaches the lower level only through sensory
		// re-entry; no direct active->internal edge exists.
		c.Type = domain.ParticleStrangeMetacognitive
		c.Agentic = true
	default:
		if len(blanket.Active) > 0 {
			// Active states exist but touch nothing below; the process
			// sits between passive and active metacognition.
			c.Confidence -= AmbiguityPenalty
		}
	}

	if blanket.NestedDepth > 1 {
		c.Type = domain.ParticleNested
		c.NestingLevel = blanket.NestedDepth
		if blanket.NestedDepth == 2 {
			// One blanket away from the non-nested classifications.
			c.Confidence -= AmbiguityPenalty
		}
	}

	return c, nil
}

// ClassifyAndStore classifies a blanket and persists the resulting particle.
// Particles above level 0 require a parent; the store revalidates depth on
// every write.
func (s *ClassifierService) ClassifyAndStore(ctx context.Context, agentID uuid.UUID, blanket domain.MarkovBlanket, parentID, beliefID *uuid.UUID) (*domain.MetacognitiveParticle, error) {
	c, err := s.Classify(agentID, blanket)
	if err != nil {
		return nil, err
	}

	if c.NestingLevel > 0 && parentID == nil {
		return nil, domain.NewValidationError(agentID.String(),
			fmt.Sprintf("particle at nesting level %d requires a parent", c.NestingLevel))
	}

	p := &domain.MetacognitiveParticle{
		ID:           uuid.New(),
		AgentID:      agentID,
		Type:         c.Type,
		NestingLevel: c.NestingLevel,
		Agentic:      c.Agentic,
		ParentID:     parentID,
		BeliefID:     beliefID,
		Confidence:   c.Confidence,
		ClassifiedAt: time.Now().UTC(),
	}

	if err := s.particles.Upsert(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Debug("particle classified",
		zap.String("agent_id", agentID.String()),
		zap.String("type", string(p.Type)),
		zap.Int("nesting_level", p.NestingLevel),
		zap.Float64("confidence", p.Confidence))

	return p, nil
}
