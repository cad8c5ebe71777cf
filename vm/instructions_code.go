package vm

func equalCode(a, b Code) bool { return a.Equal(b) }

func defineCode(_ *Engine, c Code) Code { return c }

var codeFamily = stackFamily[Code]{
	prefix: "CODE",
	tag:    TagCode,
	stack:  (*Engine).Code,
	equal:  equalCode,
	define: defineCode,
}

// absIndex reduces n to [0, size) by absolute value and modulo.
func absIndex(n int64, size int) int {
	u := uint64(n)
	if n < 0 {
		u = -u
	}
	return int(u % uint64(size))
}

func emptyList() Code { return newListOwned(nil) }

func codeInstructions() []Instruction {
	f := codeFamily
	op := func(name string, exec func(e *Engine) error, extraTags ...string) Instruction {
		return f.instruction(name, f.tags(extraTags...), func(e *Engine, _ Data) error {
			return exec(e)
		})
	}
	// unary pops one code item and hands it to fn.
	unary := func(name string, fn func(e *Engine, c Code), extraTags ...string) Instruction {
		return op(name, func(e *Engine) error {
			c, ok := e.codeStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			fn(e, c)
			return nil
		}, extraTags...)
	}
	// binary pops the top item, then the second, and hands them over in
	// that order.
	binary := func(name string, fn func(e *Engine, top, second Code), extraTags ...string) Instruction {
		return op(name, func(e *Engine) error {
			if e.codeStack.Len() < 2 {
				return ErrInsufficientInputs
			}
			top, _ := e.codeStack.Pop()
			second, _ := e.codeStack.Pop()
			fn(e, top, second)
			return nil
		}, extraTags...)
	}
	// withInteger pops a code item and an integer.
	withInteger := func(name string, fn func(e *Engine, c Code, n int64) error) Instruction {
		return op(name, func(e *Engine) error {
			if e.codeStack.Len() < 1 || e.integerStack.Len() < 1 {
				return ErrInsufficientInputs
			}
			n, _ := e.integerStack.Pop()
			c, _ := e.codeStack.Pop()
			return fn(e, c, n)
		}, TagInteger)
	}

	insts := []Instruction{
		binary("APPEND", func(e *Engine, src, dst Code) {
			e.codeStack.Push(newListOwned(append(dst.ToList(), src.ToList()...)))
		}),
		op("ATOM", func(e *Engine) error {
			c, ok := e.codeStack.Peek()
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(c.IsAtom())
			return nil
		}, TagBool),
		unary("CAR", func(e *Engine, c Code) {
			switch {
			case c.IsAtom():
				e.codeStack.Push(c)
			case c.Len() == 0:
				e.codeStack.Push(emptyList())
			default:
				e.codeStack.Push(c.data.list[0])
			}
		}),
		unary("CDR", func(e *Engine, c Code) {
			if c.IsList() && c.Len() > 1 {
				e.codeStack.Push(NewList(c.data.list[1:]...))
				return
			}
			e.codeStack.Push(emptyList())
		}),
		binary("CONS", func(e *Engine, top, first Code) {
			e.codeStack.Push(newListOwned(append([]Code{first}, top.ToList()...)))
		}),
		binary("CONTAINER", func(e *Engine, lookFor, lookIn Code) {
			if found, ok := lookIn.Container(lookFor); ok {
				e.codeStack.Push(found)
				return
			}
			e.codeStack.Push(emptyList())
		}),
		binary("CONTAINS", func(e *Engine, lookFor, lookIn Code) {
			e.boolStack.Push(lookIn.Contains(lookFor))
		}, TagBool),
		op("DEFINITION", func(e *Engine) error {
			name, ok := e.nameStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			if def, ok := e.Definition(name); ok {
				e.codeStack.Push(def)
			}
			return nil
		}, TagName),
		binary("DISCREPANCY", func(e *Engine, a, b Code) {
			e.integerStack.Push(Discrepancy(a, b))
		}, TagInteger),
		// DO runs the top item and pops it afterwards.
		unary("DO", func(e *Engine, c Code) {
			e.execStack.Push(e.Instruction("CODE.POP"))
			e.execStack.Push(c)
			e.codeStack.Push(c)
		}, TagExec),
		// DO* pops the top item before running it.
		unary("DO*", func(e *Engine, c Code) {
			e.execStack.Push(c)
		}, TagExec),
		withInteger("DO*COUNT", func(e *Engine, body Code, count int64) error {
			if count <= 0 {
				e.codeStack.Push(body)
				e.integerStack.Push(count)
				return nil
			}
			e.execStack.Push(e.codeRangeLoop(0, count-1, body))
			return nil
		}),
		op("DO*RANGE", func(e *Engine) error {
			if e.codeStack.Len() < 1 || e.integerStack.Len() < 2 {
				return ErrInsufficientInputs
			}
			body, _ := e.codeStack.Pop()
			cur, dest, _ := pop2(e.integerStack)
			if cur != dest {
				next := cur + 1
				if cur > dest {
					next = cur - 1
				}
				e.execStack.Push(e.codeRangeLoop(next, dest, body))
			}
			e.integerStack.Push(cur)
			e.execStack.Push(body)
			return nil
		}, TagInteger, TagExec),
		withInteger("DO*TIMES", func(e *Engine, body Code, count int64) error {
			if count <= 0 {
				e.codeStack.Push(body)
				e.integerStack.Push(count)
				return nil
			}
			body = NewList(e.Instruction("INTEGER.POP"), body)
			e.execStack.Push(e.codeRangeLoop(0, count-1, body))
			return nil
		}),
		withInteger("EXTRACT", func(e *Engine, c Code, point int64) error {
			sub, _ := c.ExtractPoint(absIndex(point, c.Points()))
			e.codeStack.Push(sub)
			return nil
		}),
		op("FROMBOOLEAN", func(e *Engine) error {
			v, ok := e.boolStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(e.BoolLiteral(v))
			return nil
		}, TagBool),
		op("FROMFLOAT", func(e *Engine) error {
			v, ok := e.floatStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(e.FloatLiteral(v))
			return nil
		}, TagFloat),
		op("FROMINTEGER", func(e *Engine) error {
			v, ok := e.integerStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(e.IntegerLiteral(v))
			return nil
		}, TagInteger),
		op("FROMNAME", func(e *Engine) error {
			v, ok := e.nameStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(e.NameLiteral(v))
			return nil
		}, TagName),
		op("IF", func(e *Engine) error {
			if e.codeStack.Len() < 2 || e.boolStack.Len() < 1 {
				return ErrInsufficientInputs
			}
			falseBranch, _ := e.codeStack.Pop()
			trueBranch, _ := e.codeStack.Pop()
			if cond, _ := e.boolStack.Pop(); cond {
				e.execStack.Push(trueBranch)
			} else {
				e.execStack.Push(falseBranch)
			}
			return nil
		}, TagBool, TagExec),
		op("INSERT", func(e *Engine) error {
			if e.codeStack.Len() < 2 || e.integerStack.Len() < 1 {
				return ErrInsufficientInputs
			}
			searchIn, _ := e.codeStack.Pop()
			replaceWith, _ := e.codeStack.Pop()
			point, _ := e.integerStack.Pop()
			result, _ := searchIn.ReplacePoint(absIndex(point, searchIn.Points()), replaceWith)
			e.codeStack.Push(result)
			return nil
		}, TagInteger),
		unary("LENGTH", func(e *Engine, c Code) {
			e.integerStack.Push(int64(c.Len()))
		}, TagInteger),
		binary("LIST", func(e *Engine, top, second Code) {
			e.codeStack.Push(NewList(second, top))
		}),
		binary("MEMBER", func(e *Engine, lookIn, lookFor Code) {
			e.boolStack.Push(lookIn.HasMember(lookFor))
		}, TagBool),
		op("NOOP", func(e *Engine) error { return nil }),
		withInteger("NTH", func(e *Engine, c Code, n int64) error {
			items := c.ToList()
			if len(items) == 0 {
				e.codeStack.Push(emptyList())
				return nil
			}
			e.codeStack.Push(items[absIndex(n, len(items))])
			return nil
		}),
		withInteger("NTHCDR", func(e *Engine, c Code, n int64) error {
			items := c.ToList()
			if len(items) == 0 {
				e.codeStack.Push(emptyList())
				return nil
			}
			e.codeStack.Push(newListOwned(items[absIndex(n, len(items)):]))
			return nil
		}),
		unary("NULL", func(e *Engine, c Code) {
			e.boolStack.Push(c.IsList() && c.Len() == 0)
		}, TagBool),
		binary("POSITION", func(e *Engine, lookIn, lookFor Code) {
			e.integerStack.Push(int64(lookIn.PositionOf(lookFor)))
		}, TagInteger),
		op("QUOTE", func(e *Engine) error {
			c, ok := e.execStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(c)
			return nil
		}, TagExec),
		op("RAND", func(e *Engine) error {
			limit, ok := e.integerStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.codeStack.Push(e.RandomCodeUpTo(limit))
			return nil
		}, TagInteger),
		unary("SIZE", func(e *Engine, c Code) {
			e.integerStack.Push(int64(c.Points()))
		}, TagInteger),
		op("SUBSTITUTE", func(e *Engine) error {
			if e.codeStack.Len() < 3 {
				return ErrInsufficientInputs
			}
			lookIn, _ := e.codeStack.Pop()
			lookFor, _ := e.codeStack.Pop()
			replaceWith, _ := e.codeStack.Pop()
			e.codeStack.Push(lookIn.Replace(lookFor, replaceWith))
			return nil
		}),
	}
	return append(insts, f.common()...)
}

// codeRangeLoop builds ( cur dest CODE.QUOTE body CODE.DO*RANGE ).
func (e *Engine) codeRangeLoop(cur, dest int64, body Code) Code {
	return NewList(
		e.IntegerLiteral(cur),
		e.IntegerLiteral(dest),
		e.Instruction("CODE.QUOTE"),
		body,
		e.Instruction("CODE.DO*RANGE"),
	)
}
