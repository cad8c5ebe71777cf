package evolve

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// SelectionCurve biases random picks from a population sorted least fit
// first. The fittest individuals sit at the end of the slice.
type SelectionCurve int

const (
	// Fair picks every individual with equal probability.
	Fair SelectionCurve = iota
	SlightPreferenceForFit
	PreferenceForFit
	StrongPreferenceForFit
	SlightPreferenceForUnfit
	PreferenceForUnfit
	StrongPreferenceForUnfit
)

var curveNames = [...]string{
	Fair:                     "fair",
	SlightPreferenceForFit:   "slight-preference-for-fit",
	PreferenceForFit:         "preference-for-fit",
	StrongPreferenceForFit:   "strong-preference-for-fit",
	SlightPreferenceForUnfit: "slight-preference-for-unfit",
	PreferenceForUnfit:       "preference-for-unfit",
	StrongPreferenceForUnfit: "strong-preference-for-unfit",
}

// Exponents below 1 push samples toward 1 (the fit end), above 1 toward 0.
var curveExponents = [...]float64{
	Fair:                     1,
	SlightPreferenceForFit:   0.75,
	PreferenceForFit:         0.5,
	StrongPreferenceForFit:   0.25,
	SlightPreferenceForUnfit: 1 / 0.75,
	PreferenceForUnfit:       2,
	StrongPreferenceForUnfit: 4,
}

func (c SelectionCurve) String() string {
	if c >= 0 && int(c) < len(curveNames) {
		return curveNames[c]
	}
	return fmt.Sprintf("SelectionCurve(%d)", int(c))
}

// ParseSelectionCurve accepts the names produced by String.
func ParseSelectionCurve(s string) (SelectionCurve, error) {
	for i, name := range curveNames {
		if name == s {
			return SelectionCurve(i), nil
		}
	}
	return Fair, fmt.Errorf("evolve: unknown selection curve %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c SelectionCurve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *SelectionCurve) UnmarshalText(text []byte) error {
	parsed, err := ParseSelectionCurve(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Pick returns an index in [0, n). n must be positive.
func (c SelectionCurve) Pick(rng *rand.Rand, n int) int {
	if n <= 1 {
		return 0
	}
	exp := 1.0
	if c >= 0 && int(c) < len(curveExponents) {
		exp = curveExponents[c]
	}
	x := rng.Float64()
	if exp != 1 {
		x = math.Pow(x, exp)
	}
	i := int(x * float64(n))
	return min(max(i, 0), n-1)
}
