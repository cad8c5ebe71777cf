package vm

// ---------------------------------------------------------------------------
// Random code generation
// ---------------------------------------------------------------------------

// RandomCode returns a tree whose size is uniform in
// [1, MaxPointsInRandomExpressions].
func (e *Engine) RandomCode() Code {
	maxPoints := max(e.config.MaxPointsInRandomExpressions, 1)
	return e.RandomCodeWithSize(1 + e.rng.IntN(maxPoints))
}

// RandomCodeUpTo returns a tree of random size bounded by limit. The bound is
// |limit| modulo MaxPointsInRandomExpressions, and at least 1.
func (e *Engine) RandomCodeUpTo(limit int64) Code {
	maxPoints := max(e.config.MaxPointsInRandomExpressions, 1)
	bound := max(absIndex(limit, maxPoints), 1)
	return e.RandomCodeWithSize(1 + e.rng.IntN(bound))
}

// RandomCodeWithSize returns a tree with exactly points points. The budget
// minus one (for the enclosing list) is split into a random composition of
// positive parts, shuffled, and each child is generated at its part's size.
func (e *Engine) RandomCodeWithSize(points int) Code {
	if points <= 1 {
		return e.randomAtom()
	}
	parts := e.decompose(points-1, points-1)
	e.rng.Shuffle(len(parts), func(i, j int) {
		parts[i], parts[j] = parts[j], parts[i]
	})
	children := make([]Code, len(parts))
	for i, part := range parts {
		children[i] = e.RandomCodeWithSize(part)
	}
	return newListOwned(children)
}

// decompose splits number into at most maxParts positive parts.
func (e *Engine) decompose(number, maxParts int) []int {
	var parts []int
	for number > 1 && maxParts > 1 {
		part := 1 + e.rng.IntN(number-1)
		parts = append(parts, part)
		number -= part
		maxParts--
	}
	return append(parts, number)
}

// randomAtom draws between the bound names, each weighted by
// DefinedNameWeight, and the weighted instructions. Instructions with a
// Random function fill in an ephemeral constant.
func (e *Engine) randomAtom() Code {
	names := e.DefinedNames()
	nameShare := len(names) * int(e.config.DefinedNameWeight)
	total := nameShare + e.weights.Sum()
	if total == 0 {
		return emptyList()
	}

	draw := e.rng.IntN(total)
	if draw < nameShare {
		return e.NameLiteral(names[draw/int(e.config.DefinedNameWeight)])
	}

	op, _ := e.weights.Resolve(draw - nameShare + 1)
	inst := e.table.byID[op]
	data := NoData
	if inst.Random != nil {
		data = inst.Random(e)
	}
	return NewAtom(op, data)
}
