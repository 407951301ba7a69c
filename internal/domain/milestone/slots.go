package milestone

import "math"

// Kind tags the formula a milestone slot contributes.
type Kind string

const (
	KindSum         Kind = "sum"
	KindProduct     Kind = "product"
	KindExponential Kind = "exponential"
	KindNorm        Kind = "norm"
	KindFlat        Kind = "flat"
)

var earlyKinds = [4]Kind{KindSum, KindProduct, KindExponential, KindNorm}

// expTimeScale sets how fast the exponential slot saturates.
const expTimeScale = 1000

// Slot is one entry of the fixed milestone table. Index is 1-based.
type Slot struct {
	Index  int     `json:"index"`
	Kind   Kind    `json:"kind"`
	Weight float64 `json:"weight"`
}

// BuildSlots lays out the table once: early slots cycle through
// Σ, Π, exponential and norm by index % 4; late slots are flat.
func BuildSlots(cfg Config) []Slot {
	slots := make([]Slot, cfg.Slots)
	for i := range slots {
		idx := i + 1
		if idx >= cfg.LateStart {
			slots[i] = Slot{Index: idx, Kind: KindFlat, Weight: cfg.FlatWeight}
			continue
		}
		slots[i] = Slot{Index: idx, Kind: earlyKinds[idx%4], Weight: cfg.EarlyWeight}
	}
	return slots
}

// Term evaluates the slot against the current state. Always >= 0.
func (s Slot) Term(values []float64, t float64) float64 {
	switch s.Kind {
	case KindSum:
		sum := 0.0
		for _, x := range values {
			sum += logp(x)
		}
		return s.Weight * sum
	case KindProduct:
		prod := 1.0
		for _, x := range values {
			prod *= 1 + logp(x)
		}
		return s.Weight * (prod - 1)
	case KindExponential:
		t = math.Max(t, 0)
		wave := 1 + 0.5*math.Sin(t/50)
		return s.Weight * (1 - math.Exp(-t/expTimeScale)) * wave
	case KindNorm:
		sq := 0.0
		for _, x := range values {
			l := logp(x)
			sq += l * l
		}
		return s.Weight * math.Sqrt(sq)
	case KindFlat:
		return s.Weight
	}
	return 0
}

// Symbol is the overlay fragment for the slot.
func (s Slot) Symbol() string {
	switch s.Kind {
	case KindSum:
		return `\Sigma \log x_i`
	case KindProduct:
		return `\Pi (1+\log x_i)`
	case KindExponential:
		return `(1-e^{-t/\tau})`
	case KindNorm:
		return `\|\log x\|`
	case KindFlat:
		return `\epsilon`
	}
	return ""
}

func logp(x float64) float64 {
	return math.Log10(1 + math.Max(x, 0))
}
