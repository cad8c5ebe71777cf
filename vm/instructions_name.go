package vm

var nameFamily = stackFamily[string]{
	prefix: "NAME",
	tag:    TagName,
	stack:  (*Engine).Name,
	equal:  equalOf[string],
}

func nameInstructions() []Instruction {
	f := nameFamily
	insts := []Instruction{
		// QUOTE makes the next name literal land on the NAME stack even if it
		// is bound.
		f.instruction("QUOTE", f.tags(), func(e *Engine, _ Data) error {
			e.QuoteNextName()
			return nil
		}),
		f.instruction("RAND", f.tags(), func(e *Engine, _ Data) error {
			e.nameStack.Push(e.randomName())
			return nil
		}),
		f.instruction("RANDBOUNDNAME", f.tags(), func(e *Engine, _ Data) error {
			names := e.DefinedNames()
			if len(names) == 0 {
				return ErrInsufficientInputs
			}
			e.nameStack.Push(names[e.rng.IntN(len(names))])
			return nil
		}),
	}
	return append(insts, f.common()...)
}
