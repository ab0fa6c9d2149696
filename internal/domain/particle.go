package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParticleType is the closed set of structural classifications for a cognitive
// process. Classification is a deterministic function of blanket structure;
// there is no dynamic dispatch behind these variants.
type ParticleType string

const (
	ParticleCognitive            ParticleType = "cognitive"
	ParticlePassiveMetacognitive ParticleType = "passive_metacognitive"
	ParticleActiveMetacognitive  ParticleType = "active_metacognitive"
	ParticleStrangeMetacognitive ParticleType = "strange_metacognitive"
	ParticleNested               ParticleType = "nested"
)

func ValidParticleType(t string) bool {
	switch ParticleType(t) {
	case ParticleCognitive, ParticlePassiveMetacognitive, ParticleActiveMetacognitive,
		ParticleStrangeMetacognitive, ParticleNested:
		return true
	}
	return false
}

// DefaultMaxNestingLevel caps recursive self-modelling. Exceeding it is a hard
// violation, never a silent truncation.
const DefaultMaxNestingLevel = 5

// Partition names one subset of a Markov-blanket partition. PartitionLower
// denotes the internal states of the modelled lower level, so an edge
// {Active, Lower} is the direct active->internal control path.
type Partition string

const (
	PartitionExternal Partition = "external"
	PartitionSensory  Partition = "sensory"
	PartitionActive   Partition = "active"
	PartitionInternal Partition = "internal"
	PartitionLower    Partition = "lower"
)

func ValidPartition(p string) bool {
	switch Partition(p) {
	case PartitionExternal, PartitionSensory, PartitionActive, PartitionInternal, PartitionLower:
		return true
	}
	return false
}

// BlanketEdge is a directed influence path between two partitions.
type BlanketEdge struct {
	From Partition `json:"from"`
	To   Partition `json:"to"`
}

// MarkovBlanket is the structural input to classification: the partitioned
// state sets of one process plus the directed paths among them. NestedDepth
// counts internal blankets nested inside this one.
type MarkovBlanket struct {
	External    []string      `json:"external"`
	Sensory     []string      `json:"sensory"`
	Active      []string      `json:"active"`
	Internal    []string      `json:"internal"`
	Edges       []BlanketEdge `json:"edges"`
	NestedDepth int           `json:"nested_depth"`
}

// HasEdge reports whether the blanket contains a directed path from one
// partition to another.
func (b *MarkovBlanket) HasEdge(from, to Partition) bool {
	for _, e := range b.Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// RepresentsLower reports whether internal states encode the lower level's
// beliefs (beliefs-about-beliefs) rather than mapping external states only.
func (b *MarkovBlanket) RepresentsLower() bool {
	return b.HasEdge(PartitionInternal, PartitionLower) || b.HasEdge(PartitionLower, PartitionInternal)
}

// ControlsLowerDirect reports a direct active path into the lower level.
func (b *MarkovBlanket) ControlsLowerDirect() bool {
	return b.HasEdge(PartitionActive, PartitionLower)
}

// ControlsLowerViaSensory reports an active path that reaches the lower level
// only through sensory re-entry.
func (b *MarkovBlanket) ControlsLowerViaSensory() bool {
	return b.HasEdge(PartitionActive, PartitionSensory) && b.HasEdge(PartitionSensory, PartitionLower)
}

// MetacognitiveParticle is a classified cognitive process. Nesting is stored
// flat as parent id + integer level, never as an embedded object graph.
type MetacognitiveParticle struct {
	ID           uuid.UUID    `json:"id"`
	AgentID      uuid.UUID    `json:"agent_id"`
	Type         ParticleType `json:"type"`
	NestingLevel int          `json:"nesting_level"`
	Agentic      bool         `json:"agentic"`
	ParentID     *uuid.UUID   `json:"parent_id,omitempty"`
	BeliefID     *uuid.UUID   `json:"belief_id,omitempty"`
	Confidence   float64      `json:"confidence"`
	ClassifiedAt time.Time    `json:"classified_at"`
}
