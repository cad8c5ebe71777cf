// Package regression is a reference experiment: evolve a program that
// computes an integer polynomial.
//
// Each generation an island draws its fitness cases from its own engine. For
// every case the input is pushed onto the INTEGER stack and onto the INPUT
// attachment (read back by INPUT.X), the program runs, and the top of the
// INTEGER stack is compared with the target.
package regression

import (
	"cmp"
	"fmt"
	"math"

	"github.com/chazu/pushgp/evolve"
	"github.com/chazu/pushgp/vm"
)

const (
	// InputStack is the attachment name of the per-case input stack.
	InputStack = "INPUT"

	// InputInstruction pushes the current case's input onto the INTEGER
	// stack.
	InputInstruction = "INPUT.X"

	// NoOutputPenalty is charged for a case that leaves the INTEGER stack
	// empty.
	NoOutputPenalty int64 = 1_000_000
)

// NewTable returns the base instruction table with INPUT.X registered ahead
// of the literals.
func NewTable() (*vm.InstructionTable, error) {
	t := vm.NewInstructionTable()
	if err := vm.RegisterBaseInstructions(t); err != nil {
		return nil, err
	}
	if _, err := t.Register(vm.Instruction{
		Name:    InputInstruction,
		Tags:    []string{"input", vm.TagInteger},
		Parse:   vm.ExactMatch(InputInstruction),
		Execute: executeInput,
	}); err != nil {
		return nil, err
	}
	if err := vm.RegisterLiterals(t); err != nil {
		return nil, err
	}
	return t, nil
}

func executeInput(e *vm.Engine, _ vm.Data) error {
	in, ok := vm.Attached[*vm.Stack[int64]](e, InputStack)
	if !ok {
		return vm.ErrInsufficientInputs
	}
	x, ok := in.Peek()
	if !ok {
		return vm.ErrInsufficientInputs
	}
	e.Integer().Push(x)
	return nil
}

// Problem describes the target polynomial and how it is sampled.
type Problem struct {
	// Target holds coefficients, constant term first.
	Target   []int64
	Cases    int
	InputMin int64
	InputMax int64
	MaxSteps int
}

// Eval computes the target at x. Arithmetic wraps on overflow.
func (p Problem) Eval(x int64) int64 {
	var y int64
	for i := len(p.Target) - 1; i >= 0; i-- {
		y = y*x + p.Target[i]
	}
	return y
}

// Score is one individual's result. Lower Error is fitter; on equal error
// the smaller program is fitter.
type Score struct {
	Error  int64
	Points int
}

func (s Score) String() string {
	return fmt.Sprintf("error=%d points=%d", s.Error, s.Points)
}

// ---------------------------------------------------------------------------
// Island callbacks
// ---------------------------------------------------------------------------

// Callbacks evaluates one island. The fitness cases are per-generation state,
// so every island needs its own Callbacks.
type Callbacks struct {
	evolve.NopGenerationHooks[Score]

	problem Problem
	inputs  []int64
}

var _ evolve.IslandCallbacks[Score] = (*Callbacks)(nil)

// NewCallbacks returns callbacks for p.
func NewCallbacks(p Problem) *Callbacks {
	return &Callbacks{problem: p}
}

// Inputs returns the fitness cases of the current generation.
func (c *Callbacks) Inputs() []int64 { return c.inputs }

// PreGenerationRun attaches the input stack if needed and draws this
// generation's fitness cases.
func (c *Callbacks) PreGenerationRun(e *vm.Engine, _ []*evolve.Individual[Score]) {
	if _, ok := vm.Attached[*vm.Stack[int64]](e, InputStack); !ok {
		e.Attach(InputStack, vm.NewStack[int64]())
	}
	rng := e.Rand()
	lo, hi := c.problem.InputMin, c.problem.InputMax
	span := uint64(hi-lo) + 1

	c.inputs = c.inputs[:0]
	for range max(c.problem.Cases, 1) {
		x := lo
		if span == 0 {
			x = int64(rng.Uint64())
		} else if span > 1 {
			x = lo + int64(rng.Uint64N(span))
		}
		c.inputs = append(c.inputs, x)
	}
}

// RunIndividual sums the absolute error over every case. A run ending in a
// fatal engine error fails the individual.
func (c *Callbacks) RunIndividual(e *vm.Engine, ind *evolve.Individual[Score]) (Score, error) {
	score := Score{Points: ind.Code.Points()}
	in, _ := vm.Attached[*vm.Stack[int64]](e, InputStack)
	for _, x := range c.inputs {
		e.Clear()
		ind.Load(e)
		if in != nil {
			in.Push(x)
		}
		e.Integer().Push(x)

		status := e.Run(c.problem.MaxSteps)
		if err := status.Err(); err != nil {
			return Score{}, err
		}
		got, ok := e.Integer().Peek()
		if !ok {
			score.Error = addSaturating(score.Error, NoOutputPenalty)
			continue
		}
		score.Error = addSaturating(score.Error, absDiff(got, c.problem.Eval(x)))
	}
	return score, nil
}

// SortIndividuals orders by descending error, then descending size.
func (c *Callbacks) SortIndividuals(a, b *evolve.Individual[Score]) int {
	sa, _ := a.RunResult()
	sb, _ := b.RunResult()
	if n := cmp.Compare(sb.Error, sa.Error); n != 0 {
		return n
	}
	return cmp.Compare(sb.Points, sa.Points)
}

// Best returns the fittest evaluated individual across all islands.
func Best(w *evolve.World[Score]) (*evolve.Individual[Score], Score, bool) {
	var best *evolve.Individual[Score]
	var bestScore Score
	for id := range w.Len() {
		island, _ := w.Island(id)
		ind, ok := island.MostFit()
		if !ok {
			continue
		}
		score, ok := ind.RunResult()
		if !ok {
			continue
		}
		if best == nil || score.Error < bestScore.Error ||
			(score.Error == bestScore.Error && score.Points < bestScore.Points) {
			best, bestScore = ind, score
		}
	}
	return best, bestScore, best != nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		a, b = b, a
	}
	d := uint64(b) - uint64(a)
	if d > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d)
}

func addSaturating(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
