package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/isectech/ops-simulator/config"
)

// Intake times follow a Beta(2.2, 3.0) shape over the business-hour span,
// skewing volume toward the morning.
const (
	intakeBetaAlpha = 2.2
	intakeBetaBeta  = 3.0
)

// CaseMixSampler draws case types and tiers from the configured weighted
// categorical tables. Key order is fixed at construction so draws consume the
// random stream deterministically.
type CaseMixSampler struct {
	typeKeys    []string
	typeWeights []float64
	tierKeys    []string
	tierWeights []float64
}

// NewCaseMixSampler validates the weight tables and prepares them for sampling.
func NewCaseMixSampler(cfg config.CaseMixConfig) (*CaseMixSampler, error) {
	typeKeys, typeWeights, err := sortedWeights("case type", cfg.TypeWeights)
	if err != nil {
		return nil, err
	}
	tierKeys, tierWeights, err := sortedWeights("case tier", cfg.TierWeights)
	if err != nil {
		return nil, err
	}
	return &CaseMixSampler{
		typeKeys:    typeKeys,
		typeWeights: typeWeights,
		tierKeys:    tierKeys,
		tierWeights: tierWeights,
	}, nil
}

// SampleMix draws n independent (case type, tier) pairs.
func (s *CaseMixSampler) SampleMix(rng *Stream, n int) (types, tiers []string) {
	types = make([]string, n)
	tiers = make([]string, n)
	for i := 0; i < n; i++ {
		types[i] = rng.WeightedChoice(s.typeKeys, s.typeWeights)
		tiers[i] = rng.WeightedChoice(s.tierKeys, s.tierWeights)
	}
	return types, tiers
}

// SampleIntakeTimes draws n intake timestamps within business hours on the
// given day. The unit Beta draw maps to a minute offset inside the span, plus
// a uniform second jitter; every result lands in [startHour, endHour) local
// time.
func SampleIntakeTimes(rng *Stream, dayStart time.Time, n int, hours config.BusinessHoursConfig) []time.Time {
	spanMinutes := float64(hours.EndHour-hours.StartHour) * 60

	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		minutes := int(rng.Beta(intakeBetaAlpha, intakeBetaBeta) * spanMinutes)
		seconds := rng.IntBetween(0, 60)
		// Built from local wall-clock components so the containment guarantee
		// holds even on DST transition days.
		out[i] = time.Date(
			dayStart.Year(), dayStart.Month(), dayStart.Day(),
			hours.StartHour+minutes/60, minutes%60, seconds, 0,
			dayStart.Location(),
		)
	}
	return out
}

// sortedWeights flattens a weight map into parallel slices in key order, so the
// sampling sequence does not depend on Go map iteration order.
func sortedWeights(name string, table map[string]float64) ([]string, []float64, error) {
	if len(table) == 0 {
		return nil, nil, fmt.Errorf("%s weight table must not be empty", name)
	}
	keys := make([]string, 0, len(table))
	total := 0.0
	for k, w := range table {
		if w < 0 {
			return nil, nil, fmt.Errorf("%s weight for %q must be non-negative, got %f", name, k, w)
		}
		keys = append(keys, k)
		total += w
	}
	if total <= 0 {
		return nil, nil, fmt.Errorf("%s weights must sum to a positive value", name)
	}
	sort.Strings(keys)
	weights := make([]float64, len(keys))
	for i, k := range keys {
		weights[i] = table[k]
	}
	return keys, weights, nil
}
