package evolve

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/pushgp/vm"
)

// pointsCallbacks ranks programs by size and fails any program of exactly
// failAt points.
type pointsCallbacks struct {
	failAt int
	pre    int
	post   int
}

func (c *pointsCallbacks) PreGenerationRun(*vm.Engine, []*Individual[int])  { c.pre++ }
func (c *pointsCallbacks) PostGenerationRun(*vm.Engine, []*Individual[int]) { c.post++ }

func (c *pointsCallbacks) RunIndividual(_ *vm.Engine, ind *Individual[int]) (int, error) {
	if ind.Code.Points() == c.failAt {
		return 0, errors.New("rejected")
	}
	return ind.Code.Points(), nil
}

func (c *pointsCallbacks) SortIndividuals(a, b *Individual[int]) int {
	return cmp.Compare(result(a), result(b))
}

func stagedIsland(t *testing.T, cb IslandCallbacks[int], sources ...string) *Island[int] {
	t.Helper()
	e := testEngine(1)
	island := newIsland("test", cb, e)
	for _, src := range sources {
		code, err := e.Parse(src)
		require.NoError(t, err)
		island.addToFuture(NewIndividual[int](code, nil))
	}
	island.advanceGeneration()
	return island
}

func TestIslandRunOneGeneration(t *testing.T) {
	cb := &pointsCallbacks{failAt: 3}
	island := stagedIsland(t, cb,
		"( 1 2 3 4 )", "( 1 2 )", "1", "( 1 ( 2 ) )", "( 1 2 3 )", "( ( 1 ) )")

	stats, err := island.runOneGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", stats.Island)
	assert.Equal(t, 6, stats.Evaluated)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, cb.pre)
	assert.Equal(t, 1, cb.post)

	inds := island.Individuals()
	require.Len(t, inds, 6)
	assert.True(t, inds[0].Failed())
	assert.True(t, inds[1].Failed())
	assert.EqualError(t, inds[0].Err(), "rejected")

	var points []int
	for _, ind := range inds[2:] {
		r, ok := ind.RunResult()
		require.True(t, ok)
		points = append(points, r)
	}
	assert.Equal(t, []int{1, 4, 4, 5}, points)

	best, _ := island.MostFit()
	assert.Equal(t, 5, best.Code.Points())
	worst, _ := island.LeastFit()
	assert.True(t, worst.Failed())
	_, ok := worst.RunResult()
	assert.False(t, ok)
}

func TestIslandAdvanceResetsResults(t *testing.T) {
	island := stagedIsland(t, &pointsCallbacks{}, "( 1 )", "2")
	_, err := island.runOneGeneration(context.Background())
	require.NoError(t, err)

	for _, ind := range island.Individuals() {
		island.addToFuture(ind)
	}
	island.advanceGeneration()
	for _, ind := range island.Individuals() {
		assert.False(t, ind.Evaluated())
		_, ok := ind.RunResult()
		assert.False(t, ok)
	}
}

func TestEmptyIsland(t *testing.T) {
	island := newIsland[int]("empty", &pointsCallbacks{}, testEngine(1))
	_, ok := island.MostFit()
	assert.False(t, ok)
	_, ok = island.LeastFit()
	assert.False(t, ok)
	_, ok = island.SelectOne(Fair, rand.New(rand.NewPCG(1, 1)))
	assert.False(t, ok)

	stats, err := island.runOneGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Evaluated)
}

func TestIslandClear(t *testing.T) {
	island := stagedIsland(t, &pointsCallbacks{}, "1", "2")
	island.addToFuture(island.Individuals()[0])
	island.Clear()
	assert.Equal(t, 0, island.Len())
	assert.Equal(t, 0, island.lenFuture())
}

// ---------------------------------------------------------------------------
// Individuals
// ---------------------------------------------------------------------------

func TestIndividualLoad(t *testing.T) {
	e := testEngine(1)
	ind := NewIndividual[int](e.MustParse("( 2 DOUBLE )"), map[string]vm.Code{
		"DOUBLE": e.MustParse("( INTEGER.DUP INTEGER.SUM )"),
	})
	ind.Load(e)
	status := e.Run(100)
	require.True(t, status.Natural())
	top, ok := e.Integer().Peek()
	require.True(t, ok)
	assert.Equal(t, int64(4), top)
}

func TestIndividualClone(t *testing.T) {
	e := testEngine(1)
	ind := NewIndividual[int](e.MustParse("( F )"), map[string]vm.Code{"F": e.MustParse("1")})
	ind.setResult(3)

	dup := ind.Clone()
	assert.Equal(t, ind.ID, dup.ID)
	r, ok := dup.RunResult()
	require.True(t, ok)
	assert.Equal(t, 3, r)

	dup.Definitions["G"] = e.MustParse("2")
	assert.NotContains(t, ind.Definitions, "G")
}

func TestImmigrantGetsNewIdentity(t *testing.T) {
	e := testEngine(1)
	ind := NewIndividual[int](e.MustParse("( F 2 )"), map[string]vm.Code{"F": e.MustParse("1")})
	ind.setResult(5)

	imm := ind.immigrant()
	assert.NotEqual(t, ind.ID, imm.ID)
	assert.Equal(t, []uuid.UUID{ind.ID}, imm.Parents)
	assert.True(t, imm.Code.Equal(ind.Code))
	r, ok := imm.RunResult()
	require.True(t, ok)
	assert.Equal(t, 5, r)
}

func TestDescendantKeepsUsedDefinitions(t *testing.T) {
	e := testEngine(1)
	left := NewIndividual[int](e.MustParse("( F G )"), map[string]vm.Code{
		"F": e.MustParse("1"),
		"G": e.MustParse("2"),
	})
	right := NewIndividual[int](e.MustParse("( F H )"), map[string]vm.Code{
		"F": e.MustParse("10"),
		"H": e.MustParse("3"),
	})

	child := descendant(e.MustParse("( F H X )"), left, right)
	assert.NotEqual(t, left.ID, child.ID)
	assert.Equal(t, []string{"F", "H"}, sortedKeys(child.Definitions))
	assert.True(t, child.Definitions["F"].Equal(left.Definitions["F"]))
	assert.Equal(t, 2, len(child.Parents))
	assert.Equal(t, left.ID, child.Parents[0])
	assert.Equal(t, right.ID, child.Parents[1])

	self := descendant(e.MustParse("G"), left, left)
	assert.Len(t, self.Parents, 1)
	assert.Contains(t, self.Definitions, "G")
}

func sortedKeys(m map[string]vm.Code) []string {
	return slices.Sorted(maps.Keys(m))
}
