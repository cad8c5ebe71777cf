package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// INTEGER
// ---------------------------------------------------------------------------

var integerFamily = stackFamily[int64]{
	prefix: "INTEGER",
	tag:    TagInteger,
	stack:  (*Engine).Integer,
	equal:  equalOf[int64],
	define: (*Engine).IntegerLiteral,
}

func integerInstructions() []Instruction {
	f := integerFamily

	// arith pops (left, right) and pushes the result. A false ok means the
	// operation is undefined; the inputs stay consumed.
	arith := func(name string, op func(a, b int64) (int64, bool)) Instruction {
		return f.instruction(name, f.tags(), func(e *Engine, _ Data) error {
			a, b, ok := pop2(e.integerStack)
			if !ok {
				return ErrInsufficientInputs
			}
			v, ok := op(a, b)
			if !ok {
				return ErrIllegalOperation
			}
			e.integerStack.Push(v)
			return nil
		})
	}
	compare := func(name string, op func(a, b int64) bool) Instruction {
		return f.instruction(name, f.tags(TagBool), func(e *Engine, _ Data) error {
			a, b, ok := pop2(e.integerStack)
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(op(a, b))
			return nil
		})
	}

	insts := []Instruction{
		arith("SUM", func(a, b int64) (int64, bool) {
			s := a + b
			return s, (s > a) == (b > 0)
		}),
		arith("DIFFERENCE", func(a, b int64) (int64, bool) {
			d := a - b
			return d, (d < a) == (b > 0)
		}),
		arith("PRODUCT", func(a, b int64) (int64, bool) {
			if a == 0 || b == 0 {
				return 0, true
			}
			p := a * b
			if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return 0, false
			}
			return p, true
		}),
		arith("QUOTIENT", func(a, b int64) (int64, bool) {
			if b == 0 || (a == math.MinInt64 && b == -1) {
				return 0, false
			}
			return a / b, true
		}),
		arith("MODULO", func(a, b int64) (int64, bool) {
			if b == 0 {
				return 0, false
			}
			if b == -1 {
				return 0, true
			}
			return a % b, true
		}),
		arith("MIN", func(a, b int64) (int64, bool) { return min(a, b), true }),
		arith("MAX", func(a, b int64) (int64, bool) { return max(a, b), true }),
		compare("LESS", func(a, b int64) bool { return a < b }),
		compare("GREATER", func(a, b int64) bool { return a > b }),
		f.instruction("FROMBOOLEAN", f.tags(TagBool), func(e *Engine, _ Data) error {
			v, ok := e.boolStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			if v {
				e.integerStack.Push(1)
			} else {
				e.integerStack.Push(0)
			}
			return nil
		}),
		f.instruction("FROMFLOAT", f.tags(TagFloat), func(e *Engine, _ Data) error {
			v, ok := e.floatStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			t := math.Trunc(v)
			if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
				return ErrIllegalOperation
			}
			e.integerStack.Push(int64(t))
			return nil
		}),
		f.instruction("RAND", f.tags(), func(e *Engine, _ Data) error {
			e.integerStack.Push(e.randomInteger())
			return nil
		}),
	}
	return append(insts, f.common()...)
}

// ---------------------------------------------------------------------------
// FLOAT
// ---------------------------------------------------------------------------

var floatFamily = stackFamily[float64]{
	prefix: "FLOAT",
	tag:    TagFloat,
	stack:  (*Engine).Float,
	equal:  equalOf[float64],
	define: (*Engine).FloatLiteral,
}

// pushFinite pushes v unless it is NaN or infinite.
func (e *Engine) pushFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrIllegalOperation
	}
	e.floatStack.Push(v)
	return nil
}

func floatInstructions() []Instruction {
	f := floatFamily

	arith := func(name string, op func(a, b float64) float64) Instruction {
		return f.instruction(name, f.tags(), func(e *Engine, _ Data) error {
			a, b, ok := pop2(e.floatStack)
			if !ok {
				return ErrInsufficientInputs
			}
			return e.pushFinite(op(a, b))
		})
	}
	unary := func(name string, op func(v float64) float64) Instruction {
		return f.instruction(name, f.tags(), func(e *Engine, _ Data) error {
			v, ok := e.floatStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			return e.pushFinite(op(v))
		})
	}
	compare := func(name string, op func(a, b float64) bool) Instruction {
		return f.instruction(name, f.tags(TagBool), func(e *Engine, _ Data) error {
			a, b, ok := pop2(e.floatStack)
			if !ok {
				return ErrInsufficientInputs
			}
			e.boolStack.Push(op(a, b))
			return nil
		})
	}

	insts := []Instruction{
		arith("SUM", func(a, b float64) float64 { return a + b }),
		arith("DIFFERENCE", func(a, b float64) float64 { return a - b }),
		arith("PRODUCT", func(a, b float64) float64 { return a * b }),
		arith("QUOTIENT", func(a, b float64) float64 {
			if b == 0 {
				return math.NaN()
			}
			return a / b
		}),
		arith("MODULO", func(a, b float64) float64 {
			if b == 0 {
				return math.NaN()
			}
			return math.Mod(a, b)
		}),
		arith("MIN", math.Min),
		arith("MAX", math.Max),
		compare("LESS", func(a, b float64) bool { return a < b }),
		compare("GREATER", func(a, b float64) bool { return a > b }),
		unary("SIN", math.Sin),
		unary("COS", math.Cos),
		unary("TAN", math.Tan),
		f.instruction("FROMBOOLEAN", f.tags(TagBool), func(e *Engine, _ Data) error {
			v, ok := e.boolStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			if v {
				e.floatStack.Push(1)
			} else {
				e.floatStack.Push(0)
			}
			return nil
		}),
		f.instruction("FROMINTEGER", f.tags(TagInteger), func(e *Engine, _ Data) error {
			v, ok := e.integerStack.Pop()
			if !ok {
				return ErrInsufficientInputs
			}
			e.floatStack.Push(float64(v))
			return nil
		}),
		f.instruction("RAND", f.tags(), func(e *Engine, _ Data) error {
			e.floatStack.Push(e.randomFloat())
			return nil
		}),
	}
	return append(insts, f.common()...)
}
