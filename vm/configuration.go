package vm

import (
	"maps"
	"math/rand/v2"
)

// Configuration holds the tunable parameters of an Engine: resource limits,
// genetic operator rates, random literal ranges, and the per-instruction
// weights used by random code generation.
//
// A weight is 0-255. Instructions without an explicit weight get 1. A weight
// of 0, or a disabled instruction, is never chosen by the random code
// generator but can still be parsed and executed.
type Configuration struct {
	// MaxMemorySize is the ceiling on the total size of all stacks, counted in
	// points for code stacks and items for the others.
	MaxMemorySize int

	// MaxPointsInRandomExpressions bounds the size of generated code.
	MaxPointsInRandomExpressions int

	// MaxPointsInProgram bounds children produced by genetic operators.
	MaxPointsInProgram int

	CrossoverRate     uint8
	MutationRate      uint8
	DefinedNameWeight uint8

	MinRandomInteger int64
	MaxRandomInteger int64
	MinRandomFloat   float64
	MaxRandomFloat   float64

	weights      map[string]uint8
	enabled      map[string]bool
	disabledTags map[string]bool
}

// NewConfiguration returns the default configuration.
func NewConfiguration() *Configuration {
	return &Configuration{
		MaxMemorySize:                65536,
		MaxPointsInRandomExpressions: 100,
		MaxPointsInProgram:           1000,
		CrossoverRate:                99,
		MutationRate:                 1,
		DefinedNameWeight:            1,
		MinRandomInteger:             -100,
		MaxRandomInteger:             100,
		MinRandomFloat:               -1,
		MaxRandomFloat:               1,
		weights:                      make(map[string]uint8),
		enabled:                      make(map[string]bool),
		disabledTags:                 make(map[string]bool),
	}
}

// Clone returns an independent copy.
func (c *Configuration) Clone() *Configuration {
	dup := *c
	dup.weights = maps.Clone(c.weights)
	dup.enabled = maps.Clone(c.enabled)
	dup.disabledTags = maps.Clone(c.disabledTags)
	return &dup
}

func (c *Configuration) ensureMaps() {
	if c.weights == nil {
		c.weights = make(map[string]uint8)
	}
	if c.enabled == nil {
		c.enabled = make(map[string]bool)
	}
	if c.disabledTags == nil {
		c.disabledTags = make(map[string]bool)
	}
}

// SetWeight sets the weight of one instruction.
func (c *Configuration) SetWeight(name string, weight uint8) {
	c.ensureMaps()
	c.weights[name] = weight
}

// SetWeights replaces every explicit weight.
func (c *Configuration) SetWeights(weights map[string]uint8) {
	c.weights = maps.Clone(weights)
	c.ensureMaps()
}

// Weights returns a copy of the explicit weights.
func (c *Configuration) Weights() map[string]uint8 {
	return maps.Clone(c.weights)
}

// Enable turns an instruction back on, even when one of its tags is disabled.
func (c *Configuration) Enable(name string) {
	c.ensureMaps()
	c.enabled[name] = true
}

// Disable turns off one instruction.
func (c *Configuration) Disable(name string) {
	c.ensureMaps()
	c.enabled[name] = false
}

// DisableTag turns off every instruction carrying tag, such as "float" to
// remove the whole FLOAT stack from random code.
func (c *Configuration) DisableTag(tag string) {
	c.ensureMaps()
	c.disabledTags[tag] = true
}

// EnableTag reverses DisableTag.
func (c *Configuration) EnableTag(tag string) {
	c.ensureMaps()
	delete(c.disabledTags, tag)
}

// IsEnabled reports whether inst may be chosen at all.
func (c *Configuration) IsEnabled(inst *Instruction) bool {
	if on, ok := c.enabled[inst.Name]; ok {
		return on
	}
	for _, tag := range inst.Tags {
		if c.disabledTags[tag] {
			return false
		}
	}
	return true
}

// InstructionWeight returns the effective weight of inst.
func (c *Configuration) InstructionWeight(inst *Instruction) int {
	if !c.IsEnabled(inst) {
		return 0
	}
	if w, ok := c.weights[inst.Name]; ok {
		return int(w)
	}
	return 1
}

// GeneticOperation is the kind of operator used to produce a child.
type GeneticOperation int

const (
	Mutation GeneticOperation = iota
	Crossover
)

func (g GeneticOperation) String() string {
	if g == Mutation {
		return "mutation"
	}
	return "crossover"
}

// randomGeneticOperation picks Mutation with probability
// MutationRate/(MutationRate+CrossoverRate).
func (c *Configuration) randomGeneticOperation(rng *rand.Rand) GeneticOperation {
	total := int(c.MutationRate) + int(c.CrossoverRate)
	if total == 0 {
		return Crossover
	}
	if rng.IntN(total) < int(c.MutationRate) {
		return Mutation
	}
	return Crossover
}
