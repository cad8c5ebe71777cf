package vm

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction bundles the capabilities of one named instruction.
//
// Parse recognizes a single whitespace-delimited token. Instructions that
// carry no payload use ExactMatch. Random produces the payload of a freshly
// generated atom; nil means the atom carries NoData. Format renders an atom's
// payload; nil means the atom prints as Name.
type Instruction struct {
	Name    string
	Tags    []string
	Parse   func(token string) (Data, bool)
	Random  func(e *Engine) Data
	Execute func(e *Engine, data Data) error
	Format  func(data Data) string
}

// ExactMatch returns a parser accepting only name.
func ExactMatch(name string) func(string) (Data, bool) {
	return func(token string) (Data, bool) {
		return NoData, token == name
	}
}

// HasTag reports whether the instruction carries tag.
func (inst *Instruction) HasTag(tag string) bool {
	for _, t := range inst.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// InstructionTable
// ---------------------------------------------------------------------------

// InstructionTable assigns opcodes to instructions in registration order.
//
// Registration order is also the order in which parsers are tried, so exact
// instruction names must be registered before literal parsers and the
// catch-all name literal must come last. RegisterBase follows that order.
//
// Register every instruction before building engines. After that the table
// is read-only and may be shared by any number of engines, concurrently.
type InstructionTable struct {
	byName map[string]Opcode
	byID   []*Instruction
}

// NewInstructionTable creates a table holding only the list instruction.
func NewInstructionTable() *InstructionTable {
	t := &InstructionTable{
		byName: make(map[string]Opcode),
		byID:   make([]*Instruction, 0, 256),
	}
	t.MustRegister(Instruction{Name: ListInstructionName})
	return t
}

// Register adds an instruction and returns its opcode.
func (t *InstructionTable) Register(inst Instruction) (Opcode, error) {
	if inst.Name == "" {
		return 0, fmt.Errorf("vm: instruction has no name")
	}
	if _, exists := t.byName[inst.Name]; exists {
		return 0, fmt.Errorf("vm: instruction %s already registered", inst.Name)
	}
	if inst.Name != ListInstructionName && inst.Execute == nil {
		return 0, fmt.Errorf("vm: instruction %s has no execute function", inst.Name)
	}
	op := Opcode(len(t.byID))
	t.byName[inst.Name] = op
	t.byID = append(t.byID, &inst)
	return op, nil
}

// MustRegister is Register for static instruction sets; it panics on error.
func (t *InstructionTable) MustRegister(inst Instruction) Opcode {
	op, err := t.Register(inst)
	if err != nil {
		panic(err)
	}
	return op
}

// Lookup returns the opcode registered under name.
func (t *InstructionTable) Lookup(name string) (Opcode, bool) {
	op, ok := t.byName[name]
	return op, ok
}

// MustLookup returns the opcode for name and panics if it is missing.
func (t *InstructionTable) MustLookup(name string) Opcode {
	op, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("vm: instruction %s is not registered", name))
	}
	return op
}

// Instruction returns the instruction for op.
func (t *InstructionTable) Instruction(op Opcode) (*Instruction, bool) {
	if int(op) >= len(t.byID) {
		return nil, false
	}
	return t.byID[op], true
}

// Name returns the name registered for op, or "" if op is unknown.
func (t *InstructionTable) Name(op Opcode) string {
	if inst, ok := t.Instruction(op); ok {
		return inst.Name
	}
	return ""
}

// Len returns the number of registered instructions, the list included.
func (t *InstructionTable) Len() int {
	return len(t.byID)
}

// Names returns instruction names in opcode order.
func (t *InstructionTable) Names() []string {
	names := make([]string, len(t.byID))
	for i, inst := range t.byID {
		names[i] = inst.Name
	}
	return names
}

// Atom builds an atom for a registered instruction.
func (t *InstructionTable) Atom(name string, data Data) (Code, error) {
	op, ok := t.byName[name]
	if !ok {
		return Code{}, fmt.Errorf("vm: instruction %s is not registered", name)
	}
	return NewAtom(op, data), nil
}

// parseToken tries each parser in registration order.
func (t *InstructionTable) parseToken(token string) (Code, bool) {
	for i, inst := range t.byID {
		if inst.Parse == nil {
			continue
		}
		if data, ok := inst.Parse(token); ok {
			return NewAtom(Opcode(i), data), true
		}
	}
	return Code{}, false
}

// ---------------------------------------------------------------------------
// WeightTable
// ---------------------------------------------------------------------------

type weightEntry struct {
	cumulative int
	op         Opcode
}

// WeightTable supports weighted random choice of an instruction. Entries hold
// cumulative weights in registration order; zero-weight instructions are left
// out.
type WeightTable struct {
	entries []weightEntry
	byName  map[string]int
}

// NewWeightTable derives weights for every instruction in t from cfg.
func NewWeightTable(t *InstructionTable, cfg *Configuration) *WeightTable {
	wt := &WeightTable{byName: make(map[string]int)}
	total := 0
	for i, inst := range t.byID {
		if Opcode(i) == ListOpcode {
			continue
		}
		w := cfg.InstructionWeight(inst)
		wt.byName[inst.Name] = w
		if w == 0 {
			continue
		}
		total += w
		wt.entries = append(wt.entries, weightEntry{cumulative: total, op: Opcode(i)})
	}
	return wt
}

// Sum returns the total of all weights.
func (wt *WeightTable) Sum() int {
	if len(wt.entries) == 0 {
		return 0
	}
	return wt.entries[len(wt.entries)-1].cumulative
}

// Weight returns the effective weight of the named instruction.
func (wt *WeightTable) Weight(name string) int {
	return wt.byName[name]
}

// Resolve maps a draw in [1, Sum()] to the first instruction whose cumulative
// weight is at least the draw.
func (wt *WeightTable) Resolve(draw int) (Opcode, bool) {
	if draw < 1 || draw > wt.Sum() {
		return 0, false
	}
	i := sort.Search(len(wt.entries), func(i int) bool {
		return wt.entries[i].cumulative >= draw
	})
	return wt.entries[i].op, true
}

// Pick draws a weighted random instruction. It reports false when every
// weight is zero.
func (wt *WeightTable) Pick(rng *rand.Rand) (Opcode, bool) {
	sum := wt.Sum()
	if sum == 0 {
		return 0, false
	}
	return wt.Resolve(rng.IntN(sum) + 1)
}
