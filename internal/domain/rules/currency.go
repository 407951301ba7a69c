package rules

import "math"

// CurrencySoftcapLog10 is where the currency's own rate starts to sag.
const CurrencySoftcapLog10 = 750

// CurrencyDecay returns exp(-0.001 * max(1, log10(c+1)/750)).
func CurrencyDecay(currency float64) float64 {
	softcap := math.Max(1, math.Log10(math.Max(currency, 0)+1)/CurrencySoftcapLog10)
	return math.Exp(-0.001 * softcap)
}

// CurrencyRate is the currency earned per unit of simulated time: the sum of
// the state plus any milestone slot terms, damped by CurrencyDecay.
func CurrencyRate(values []float64, slotTerms, currency float64) float64 {
	sum := 0.0
	for _, x := range values {
		sum += x
	}
	return clampFinite((sum + math.Max(slotTerms, 0)) * CurrencyDecay(currency))
}
