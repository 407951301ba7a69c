// Package state defines the evolving numeric state of a theory run.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package state

import "math"

// Vector is the integrable part of the run: N named non-negative scalars plus simulated time.
type Vector struct {
	Names         []string  `json:"names"`
	Values        []float64 `json:"values"`
	Initial       []float64 `json:"initial"`
	SimulatedTime float64   `json:"simulated_time"`
}

// NewVector creates a vector whose components start at their initial values.
// names and initial must have the same length.
func NewVector(names []string, initial []float64) *Vector {
	v := &Vector{
		Names:   append([]string(nil), names...),
		Values:  make([]float64, len(initial)),
		Initial: append([]float64(nil), initial...),
	}
	copy(v.Values, v.Initial)
	return v
}

// Len returns the number of variables.
func (v *Vector) Len() int {
	return len(v.Values)
}

// Index returns the position of the named variable, or -1.
func (v *Vector) Index(name string) int {
	for i, n := range v.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns the named variable's value, or 0 if it does not exist.
func (v *Vector) Get(name string) float64 {
	if i := v.Index(name); i >= 0 {
		return v.Values[i]
	}
	return 0
}

// Sum returns the sum of all components.
func (v *Vector) Sum() float64 {
	total := 0.0
	for _, x := range v.Values {
		total += x
	}
	return clamp(total)
}

// Integrate advances the vector by one forward-Euler step.
// Growth is applied first, then proportional decay against the grown value.
// Every component is clamped to [0, MaxFloat64] afterwards. dt <= 0 is a no-op.
func (v *Vector) Integrate(derivative []float64, decayRate, dt float64) {
	if dt <= 0 || math.IsNaN(dt) {
		return
	}
	for i := range v.Values {
		x := v.Values[i]
		if i < len(derivative) {
			x = clamp(x + derivative[i]*dt)
		}
		x -= decayRate * x * dt
		v.Values[i] = clamp(x)
	}
	v.SimulatedTime += dt
}

// Reset restores the initial values. Simulated time is kept.
func (v *Vector) Reset() {
	copy(v.Values, v.Initial)
}

// Restart restores the initial values and zeroes simulated time.
func (v *Vector) Restart() {
	v.Reset()
	v.SimulatedTime = 0
}

// Clone returns a deep copy.
func (v *Vector) Clone() *Vector {
	return &Vector{
		Names:         append([]string(nil), v.Names...),
		Values:        append([]float64(nil), v.Values...),
		Initial:       append([]float64(nil), v.Initial...),
		SimulatedTime: v.SimulatedTime,
	}
}

func clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > math.MaxFloat64:
		return math.MaxFloat64
	}
	return x
}
