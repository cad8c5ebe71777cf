package vm

var boolFamily = stackFamily[bool]{
	prefix: "BOOL",
	tag:    TagBool,
	stack:  (*Engine).Bool,
	equal:  equalOf[bool],
	define: (*Engine).BoolLiteral,
}

func boolInstructions() []Instruction {
	f := boolFamily
	binary := func(name string, op func(a, b bool) bool) Instruction {
		return f.instruction(name, f.tags(), func(e *Engine, _ Data) error {
			a, b, ok := pop2(e.boolStack)
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(op(a, b))
			return nil
		})
	}

	insts := []Instruction{
		binary("AND", func(a, b bool) bool { return a && b }),
		binary("OR", func(a, b bool) bool { return a || b }),
		f.instruction("NOT", f.tags(), func(e *Engine, _ Data) error {
			v, ok := e.boolStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(!v)
			return nil
		}),
		f.instruction("FROMFLOAT", f.tags(TagFloat), func(e *Engine, _ Data) error {
			v, ok := e.floatStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(v != 0)
			return nil
		}),
		f.instruction("FROMINTEGER", f.tags(TagInteger), func(e *Engine, _ Data) error {
			v, ok := e.integerStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(v != 0)
			return nil
		}),
		f.instruction("RAND", f.tags(), func(e *Engine, _ Data) error {
			e.boolStack.Push(e.rng.IntN(2) == 1)
			return nil
		}),
	}
	return append(insts, f.common()...)
}
