package vm

var execFamily = stackFamily[Code]{
	prefix: "EXEC",
	tag:    TagExec,
	stack:  (*Engine).Exec,
	equal:  equalCode,
	define: defineCode,
}

func execInstructions() []Instruction {
	f := execFamily
	op := func(name string, minExec int, exec func(e *Engine) error, extraTags ...string) Instruction {
		return f.instruction(name, f.tags(extraTags...), func(e *Engine, _ Data) error {
			if e.execStack.Len() < minExec {
				return ErrInsufficientInputs
			}
			return exec(e)
		})
	}
	counted := func(name string, wrap func(e *Engine, body Code) Code) Instruction {
		return op(name, 1, func(e *Engine) error {
			count, ok := e.integerStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			body, _ := e.execStack.Pop()
			if count <= 0 {
				e.execStack.Push(body)
				e.integerStack.Push(count)
				return nil
			}
			e.execStack.Push(e.execRangeLoop(0, count-1, wrap(e, body)))
			return nil
		}, TagInteger)
	}

	insts := []Instruction{
		counted("DO*COUNT", func(_ *Engine, body Code) Code { return body }),
		op("DO*RANGE", 1, func(e *Engine) error {
			cur, dest, ok := pop2(e.integerStack)
			if !ok {
				return ErrInsufficientInputs
			}
			body, _ := e.execStack.Pop()
			if cur != dest {
				next := cur + 1
				if cur > dest {
					next = cur - 1
				}
				e.execStack.Push(e.execRangeLoop(next, dest, body))
			}
			e.integerStack.Push(cur)
			e.execStack.Push(body)
			return nil
		}, TagInteger),
		// DO*TIMES hides the loop counter from the body.
		counted("DO*TIMES", func(e *Engine, body Code) Code {
			return NewList(e.Instruction("INTEGER.POP"), body)
		}),
		op("IF", 2, func(e *Engine) error {
			cond, ok := e.boolStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			trueBranch, _ := e.execStack.Pop()
			falseBranch, _ := e.execStack.Pop()
			if cond {
				e.execStack.Push(trueBranch)
			} else {
				e.execStack.Push(falseBranch)
			}
			return nil
		}, TagBool),
		// K drops the second item.
		op("K", 2, func(e *Engine) error {
			keep, _ := e.execStack.Pop()
			e.execStack.Pop()
			e.execStack.Push(keep)
			return nil
		}),
		// S pops A, B and C, then pushes ( B C ), C and A.
		op("S", 3, func(e *Engine) error {
			a, _ := e.execStack.Pop()
			b, _ := e.execStack.Pop()
			c, _ := e.execStack.Pop()
			e.execStack.Push(NewList(b, c))
			e.execStack.Push(c)
			e.execStack.Push(a)
			return nil
		}),
		// Y runs the top item and leaves ( EXEC.Y item ) beneath it.
		op("Y", 1, func(e *Engine) error {
			body, _ := e.execStack.Pop()
			e.execStack.Push(NewList(e.Instruction("EXEC.Y"), body))
			e.execStack.Push(body)
			return nil
		}),
	}
	return append(insts, f.common()...)
}

// execRangeLoop builds ( cur dest EXEC.DO*RANGE body ).
func (e *Engine) execRangeLoop(cur, dest int64, body Code) Code {
	return NewList(
		e.IntegerLiteral(cur),
		e.IntegerLiteral(dest),
		e.Instruction("EXEC.DO*RANGE"),
		body,
	)
}
