package vm

// Capability tags for the base instruction set. An instruction carries the tag
// of every stack it reads or writes.
const (
	TagBool    = "bool"
	TagInteger = "integer"
	TagFloat   = "float"
	TagName    = "name"
	TagCode    = "code"
	TagExec    = "exec"
	TagLiteral = "literal"
)

// stackFamily describes one typed stack so the instructions every stack
// shares (DUP, POP, SHOVE, ...) can be generated once.
type stackFamily[T any] struct {
	prefix string
	tag    string
	stack  func(e *Engine) *Stack[T]
	equal  func(a, b T) bool
	// define turns a value into the code bound by PREFIX.DEFINE; nil means
	// the family has no DEFINE.
	define func(e *Engine, v T) Code
}

func equalOf[T comparable](a, b T) bool { return a == b }

func (f stackFamily[T]) instruction(name string, tags []string, exec func(e *Engine, d Data) error) Instruction {
	full := f.prefix + "." + name
	return Instruction{
		Name:    full,
		Tags:    tags,
		Parse:   ExactMatch(full),
		Execute: exec,
	}
}

// tags returns the family tag plus extra, without duplicates.
func (f stackFamily[T]) tags(extra ...string) []string {
	tags := []string{f.tag}
	for _, t := range extra {
		if t != f.tag {
			tags = append(tags, t)
		}
	}
	return tags
}

// common returns DEFINE, DUP, EQUAL, FLUSH, POP, ROT, SHOVE, STACKDEPTH,
// SWAP, YANK and YANKDUP for the family.
func (f stackFamily[T]) common() []Instruction {
	var insts []Instruction

	if f.define != nil {
		insts = append(insts, f.instruction("DEFINE", f.tags(TagName), func(e *Engine, _ Data) error {
			s := f.stack(e)
			if s.Len() < 1 || e.nameStack.Len() < 1 {
				return ErrInsufficientInputs
			}
			v, _ := s.Pop()
			name, _ := e.nameStack.Pop()
			e.Define(name, f.define(e, v))
			return nil
		}))
	}

	insts = append(insts,
		f.instruction("DUP", f.tags(), func(e *Engine, _ Data) error {
			if !f.stack(e).Dup() {
				return ErrInsufficientInputs
			}
			return nil
		}),
		f.instruction("EQUAL", f.tags(TagBool), func(e *Engine, _ Data) error {
			s := f.stack(e)
			if s.Len() < 2 {
				return ErrInsufficientInputs
			}
			a, _ := s.Pop()
			b, _ := s.Pop()
			e.boolStack.Push(f.equal(a, b))
			return nil
		}),
		f.instruction("FLUSH", f.tags(), func(e *Engine, _ Data) error {
			f.stack(e).Clear()
			return nil
		}),
		f.instruction("POP", f.tags(), func(e *Engine, _ Data) error {
			if _, ok := f.stack(e).Pop(); !ok {
				return ErrInsufficientInputs
			}
			return nil
		}),
		f.instruction("ROT", f.tags(), func(e *Engine, _ Data) error {
			if !f.stack(e).Rotate() {
				return ErrInsufficientInputs
			}
			return nil
		}),
		f.instruction("SHOVE", f.tags(TagInteger), f.positional(func(s *Stack[T], p int64) bool { return s.Shove(p) })),
		f.instruction("STACKDEPTH", f.tags(TagInteger), func(e *Engine, _ Data) error {
			e.integerStack.Push(int64(f.stack(e).Len()))
			return nil
		}),
		f.instruction("SWAP", f.tags(), func(e *Engine, _ Data) error {
			if !f.stack(e).Swap() {
				return ErrInsufficientInputs
			}
			return nil
		}),
		f.instruction("YANK", f.tags(TagInteger), f.positional(func(s *Stack[T], p int64) bool { return s.Yank(p) })),
		f.instruction("YANKDUP", f.tags(TagInteger), f.positional(func(s *Stack[T], p int64) bool { return s.YankDup(p) })),
	)
	return insts
}

// positional wraps a depth-addressed stack operation. The depth comes from
// the INTEGER stack and is restored if the target stack turns out empty.
func (f stackFamily[T]) positional(op func(s *Stack[T], position int64) bool) func(e *Engine, _ Data) error {
	return func(e *Engine, _ Data) error {
		position, ok := e.integerStack.Pop()
		if !ok {
			return ErrInsufficientInputs
		}
		if !op(f.stack(e), position) {
			e.integerStack.Push(position)
			return ErrInsufficientInputs
		}
		return nil
	}
}

// pop2 removes the top two items, returning them as (second, top) so binary
// operators read left to right.
func pop2[T any](s *Stack[T]) (left, right T, ok bool) {
	if s.Len() < 2 {
		return left, right, false
	}
	right, _ = s.Pop()
	left, _ = s.Pop()
	return left, right, true
}
