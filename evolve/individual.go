package evolve

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/chazu/pushgp/vm"
)

// Individual is one evolved program: its code, the named sub-programs the
// code refers to, and the result of its most recent evaluation.
type Individual[R any] struct {
	ID      uuid.UUID
	Parents []uuid.UUID
	Code    vm.Code

	// Definitions are bound on the engine before the code runs.
	Definitions map[string]vm.Code

	result    R
	evaluated bool
	err       error
}

// NewIndividual creates an unevaluated individual with a fresh id.
func NewIndividual[R any](code vm.Code, definitions map[string]vm.Code) *Individual[R] {
	if definitions == nil {
		definitions = make(map[string]vm.Code)
	}
	return &Individual[R]{
		ID:          uuid.New(),
		Code:        code,
		Definitions: definitions,
	}
}

// RunResult returns the cached evaluation result. ok is false until the
// individual has been evaluated successfully.
func (ind *Individual[R]) RunResult() (result R, ok bool) {
	if !ind.evaluated || ind.err != nil {
		return result, false
	}
	return ind.result, true
}

// Failed reports whether the last evaluation ended in a fatal error.
func (ind *Individual[R]) Failed() bool { return ind.err != nil }

// Err returns the fatal error from the last evaluation.
func (ind *Individual[R]) Err() error { return ind.err }

// Evaluated reports whether the individual has been run this generation.
func (ind *Individual[R]) Evaluated() bool { return ind.evaluated }

func (ind *Individual[R]) setResult(r R) {
	ind.result, ind.evaluated, ind.err = r, true, nil
}

func (ind *Individual[R]) setFailed(err error) {
	var zero R
	ind.result, ind.evaluated, ind.err = zero, true, err
}

func (ind *Individual[R]) resetResult() {
	var zero R
	ind.result, ind.evaluated, ind.err = zero, false, nil
}

// Load queues the individual's code on e and binds its definitions. The
// engine is cleared first.
func (ind *Individual[R]) Load(e *vm.Engine) {
	e.SetCode(ind.Code)
	for name, code := range ind.Definitions {
		e.Define(name, code)
	}
}

// Clone returns a copy sharing the same id. Code trees are immutable so they
// are shared.
func (ind *Individual[R]) Clone() *Individual[R] {
	dup := *ind
	dup.Parents = append([]uuid.UUID(nil), ind.Parents...)
	dup.Definitions = maps.Clone(ind.Definitions)
	return &dup
}

// immigrant copies ind under a new identity whose only parent is ind. The
// copy keeps ind's result.
func (ind *Individual[R]) immigrant() *Individual[R] {
	dup := ind.Clone()
	dup.ID = uuid.New()
	dup.Parents = []uuid.UUID{ind.ID}
	return dup
}

// descendant builds a child from code, keeping only the parents' definitions
// that the child still names. Earlier parents win on conflicts.
func descendant[R any](code vm.Code, parents ...*Individual[R]) *Individual[R] {
	child := NewIndividual[R](code, nil)
	for _, name := range code.ExtractNames() {
		if _, ok := child.Definitions[name]; ok {
			continue
		}
		for _, p := range parents {
			if def, ok := p.Definitions[name]; ok {
				child.Definitions[name] = def
				break
			}
		}
	}
	for _, p := range parents {
		if !slices.Contains(child.Parents, p.ID) {
			child.Parents = append(child.Parents, p.ID)
		}
	}
	return child
}
