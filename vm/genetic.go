package vm

import "fmt"

// SelectGeneticOperation picks Mutation or Crossover according to the
// configured rates.
func (e *Engine) SelectGeneticOperation() GeneticOperation {
	return e.config.randomGeneticOperation(e.rng)
}

// Mutate replaces a random point of parent with freshly generated code of the
// same size.
func (e *Engine) Mutate(parent Code) (Code, error) {
	point := e.rng.IntN(parent.Points())
	target, _ := parent.ExtractPoint(point)
	replacement := e.RandomCodeWithSize(target.Points())
	child, _ := parent.ReplacePoint(point, replacement)
	return e.checkChild(child)
}

// Crossover copies a random sub-tree of left over a random point of right.
func (e *Engine) Crossover(left, right Code) (Code, error) {
	donated, _ := left.ExtractPoint(e.rng.IntN(left.Points()))
	child, _ := right.ReplacePoint(e.rng.IntN(right.Points()), donated)
	return e.checkChild(child)
}

func (e *Engine) checkChild(child Code) (Code, error) {
	limit := e.config.MaxPointsInProgram
	if limit > 0 && child.Points() > limit {
		return Code{}, fmt.Errorf("%w: child has %d points, limit %d", ErrOutOfMemory, child.Points(), limit)
	}
	return child, nil
}
