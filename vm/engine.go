package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
)

// ---------------------------------------------------------------------------
// Engine: typed stacks plus the fetch/execute loop
// ---------------------------------------------------------------------------

// Engine executes Code. It owns the typed stacks, the exec stack, name
// bindings and a seeded random generator. The InstructionTable is shared and
// read-only.
//
// Engine state is scratch space: callers Clear it before each evaluation. An
// Engine must not be used from more than one goroutine; use Fork to give each
// worker its own.
type Engine struct {
	table   *InstructionTable
	config  *Configuration
	weights *WeightTable
	rng     *rand.Rand
	logger  *slog.Logger

	boolStack    *Stack[bool]
	integerStack *Stack[int64]
	floatStack   *Stack[float64]
	nameStack    *Stack[string]
	codeStack    *Stack[Code]
	execStack    *Stack[Code]

	bindings      map[string]Code
	bindingSize   int
	quoteNextName bool
	attached      map[string]Attachment
}

// Attachment is a domain-specific stack or state an experiment hangs off an
// Engine. Any *Stack[T] satisfies it.
type Attachment interface {
	Len() int
	Size() int
	Clear()
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes the engine's random generator deterministic.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = newRand(seed)
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func codePoints(c Code) int { return c.Points() }

// NewEngine creates an engine for table. A nil cfg uses NewConfiguration.
func NewEngine(table *InstructionTable, cfg *Configuration, opts ...Option) *Engine {
	if cfg == nil {
		cfg = NewConfiguration()
	}
	e := &Engine{
		table:        table,
		config:       cfg,
		logger:       slog.Default(),
		boolStack:    NewStack[bool](),
		integerStack: NewStack[int64](),
		floatStack:   NewStack[float64](),
		nameStack:    NewStack[string](),
		codeStack:    NewSizedStack(codePoints),
		execStack:    NewSizedStack(codePoints),
		bindings:     make(map[string]Code),
		attached:     make(map[string]Attachment),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = newRand(rand.Uint64())
	}
	e.weights = NewWeightTable(table, cfg)
	return e
}

// Fork returns a new engine sharing the table and configuration, with empty
// stacks and its own generator. Attachments are not carried over.
func (e *Engine) Fork(seed uint64) *Engine {
	return NewEngine(e.table, e.config, WithSeed(seed), WithLogger(e.logger))
}

// Stack accessors.
func (e *Engine) Bool() *Stack[bool]       { return e.boolStack }
func (e *Engine) Integer() *Stack[int64]   { return e.integerStack }
func (e *Engine) Float() *Stack[float64]   { return e.floatStack }
func (e *Engine) Name() *Stack[string]     { return e.nameStack }
func (e *Engine) Code() *Stack[Code]       { return e.codeStack }
func (e *Engine) Exec() *Stack[Code]       { return e.execStack }
func (e *Engine) Table() *InstructionTable { return e.table }
func (e *Engine) Rand() *rand.Rand         { return e.rng }
func (e *Engine) Logger() *slog.Logger     { return e.logger }

// Configuration returns the active configuration.
func (e *Engine) Configuration() *Configuration { return e.config }

// Weights returns the weighted-selection table derived from the configuration.
func (e *Engine) Weights() *WeightTable { return e.weights }

// ResetConfiguration installs cfg and rebuilds the weight table without
// touching the registered instructions.
func (e *Engine) ResetConfiguration(cfg *Configuration) {
	e.config = cfg
	e.weights = NewWeightTable(e.table, cfg)
}

// Attach registers a domain attachment under name. Clear clears it along
// with the built-in stacks and Size counts it.
func (e *Engine) Attach(name string, a Attachment) {
	e.attached[name] = a
}

// Attached returns the attachment registered under name, if it has type T.
func Attached[T Attachment](e *Engine, name string) (T, bool) {
	a, ok := e.attached[name].(T)
	return a, ok
}

// Clear empties every stack, attachment and binding.
func (e *Engine) Clear() {
	e.boolStack.Clear()
	e.integerStack.Clear()
	e.floatStack.Clear()
	e.nameStack.Clear()
	e.codeStack.Clear()
	e.execStack.Clear()
	for _, a := range e.attached {
		a.Clear()
	}
	clear(e.bindings)
	e.bindingSize = 0
	e.quoteNextName = false
}

// Size returns the memory in use: every stack, attachment and definition.
func (e *Engine) Size() int {
	size := e.boolStack.Size() + e.integerStack.Size() + e.floatStack.Size() +
		e.nameStack.Size() + e.codeStack.Size() + e.execStack.Size() + e.bindingSize
	for _, a := range e.attached {
		size += a.Size()
	}
	return size
}

// ---------------------------------------------------------------------------
// Programs and names
// ---------------------------------------------------------------------------

// Parse reads one Code expression using the engine's table.
func (e *Engine) Parse(src string) (Code, error) {
	return e.table.Parse(src)
}

// MustParse panics if src is not valid program text.
func (e *Engine) MustParse(src string) Code {
	return e.table.MustParse(src)
}

// Format renders c in the text format.
func (e *Engine) Format(c Code) string {
	return e.table.Format(c)
}

// SetCode clears the engine and queues c for execution.
func (e *Engine) SetCode(c Code) {
	e.Clear()
	e.execStack.Push(c)
}

// ParseAndSetCode parses src and queues it for execution.
func (e *Engine) ParseAndSetCode(src string) error {
	code, err := e.Parse(src)
	if err != nil {
		return err
	}
	e.SetCode(code)
	return nil
}

// Define binds name to code. Executing the name pushes code onto the exec
// stack.
func (e *Engine) Define(name string, code Code) {
	if old, ok := e.bindings[name]; ok {
		e.bindingSize -= old.Points()
	}
	e.bindings[name] = code
	e.bindingSize += code.Points()
}

// Definition returns the code bound to name.
func (e *Engine) Definition(name string) (Code, bool) {
	code, ok := e.bindings[name]
	return code, ok
}

// Definitions returns a copy of every binding.
func (e *Engine) Definitions() map[string]Code {
	return maps.Clone(e.bindings)
}

// DefinedNames returns the bound names in sorted order.
func (e *Engine) DefinedNames() []string {
	return slices.Sorted(maps.Keys(e.bindings))
}

// QuoteNextName makes the next name literal push itself onto the NAME stack
// even if it is bound.
func (e *Engine) QuoteNextName() {
	e.quoteNextName = true
}

// Literal constructors used by instructions that build code at run time.

func (e *Engine) BoolLiteral(v bool) Code {
	return NewAtom(e.table.MustLookup(BoolLiteralName), BoolData(v))
}

func (e *Engine) IntegerLiteral(v int64) Code {
	return NewAtom(e.table.MustLookup(IntegerLiteralName), IntegerData(v))
}

func (e *Engine) FloatLiteral(v float64) Code {
	return NewAtom(e.table.MustLookup(FloatLiteralName), FloatData(v))
}

func (e *Engine) NameLiteral(v string) Code {
	return NewAtom(e.table.MustLookup(NameLiteralName), NameData(v))
}

// Instruction returns an atom for the named payload-free instruction.
func (e *Engine) Instruction(name string) Code {
	return NewAtom(e.table.MustLookup(name), NoData)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// ExitReason says why Run stopped.
type ExitReason int

const (
	ExitNormal ExitReason = iota
	ExitStepLimit
	ExitOutOfMemory
	ExitInvalidOpcode
	ExitError
)

var exitReasonNames = [...]string{"normal", "step-limit", "out-of-memory", "invalid-opcode", "error"}

func (r ExitReason) String() string {
	if int(r) < len(exitReasonNames) {
		return exitReasonNames[r]
	}
	return fmt.Sprintf("ExitReason(%d)", int(r))
}

// ExitStatus summarizes a call to Run.
type ExitStatus struct {
	Reason             ExitReason
	Steps              int
	IllegalOperations  int
	InsufficientInputs int
	err                error
}

// Natural reports whether the run ended because the exec stack emptied.
func (s ExitStatus) Natural() bool { return s.Reason == ExitNormal }

// Err returns the fatal error that ended the run, if any.
func (s ExitStatus) Err() error { return s.err }

// Step executes the top of the exec stack. It reports false when the exec
// stack was already empty. Lists are unrolled so their first child runs next.
func (e *Engine) Step() (bool, error) {
	c, ok := e.execStack.Pop()
	if !ok {
		return false, nil
	}

	if c.IsList() {
		children := c.data.list
		for i := len(children) - 1; i >= 0; i-- {
			e.execStack.Push(children[i])
		}
		return true, nil
	}

	inst, ok := e.table.Instruction(c.op)
	if !ok || inst.Execute == nil {
		return true, fmt.Errorf("%w: %d", ErrInvalidOpcode, c.op)
	}
	return true, inst.Execute(e, c.data)
}

// Run steps until the exec stack empties, maxSteps steps have run, or a fatal
// error occurs. Recoverable errors are counted and otherwise ignored.
func (e *Engine) Run(maxSteps int) ExitStatus {
	var status ExitStatus
	for status.Steps < maxSteps {
		ran, err := e.Step()
		if !ran {
			return status
		}
		status.Steps++

		if err != nil {
			switch {
			case errors.Is(err, ErrInsufficientInputs):
				status.InsufficientInputs++
			case errors.Is(err, ErrIllegalOperation):
				status.IllegalOperations++
			case errors.Is(err, ErrInvalidOpcode):
				status.Reason, status.err = ExitInvalidOpcode, err
				return status
			case errors.Is(err, ErrOutOfMemory):
				status.Reason, status.err = ExitOutOfMemory, err
				return status
			default:
				status.Reason, status.err = ExitError, err
				return status
			}
		}

		if size := e.Size(); size > e.config.MaxMemorySize {
			status.Reason = ExitOutOfMemory
			status.err = fmt.Errorf("%w: %d > %d", ErrOutOfMemory, size, e.config.MaxMemorySize)
			return status
		}
	}

	if e.execStack.Len() > 0 {
		status.Reason = ExitStepLimit
	}
	return status
}
