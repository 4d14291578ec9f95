package service

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Stream is a deterministic random stream. Each simulated day owns its own
// stream derived from the master seed, so day batches can be generated in any
// order (or in parallel) while reproducing the exact same dataset for a fixed
// seed.
type Stream struct {
	src rand.Source
	r   *rand.Rand
}

// NewStream creates a stream seeded directly from the master seed.
func NewStream(seed uint64) *Stream {
	src := rand.NewSource(seed)
	return &Stream{src: src, r: rand.New(src)}
}

// NewDayStream derives the sub-stream for one simulated day. The derivation is
// a splitmix64 step over the master seed and day index, so nearby days get
// decorrelated streams.
func NewDayStream(masterSeed uint64, dayIndex int) *Stream {
	return NewStream(splitmix64(masterSeed + uint64(dayIndex+1)*0x9E3779B97F4A7C15))
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// LogNormalMinutes draws a duration in minutes from a log-normal distribution
// parameterized by its median and log-space sigma (mu = ln(median)). The draw
// is always positive and heavy-tailed, matching operational cycle times.
func (s *Stream) LogNormalMinutes(medianMin, sigma float64) float64 {
	dist := distuv.LogNormal{
		Mu:    math.Log(math.Max(1e-6, medianMin)),
		Sigma: sigma,
		Src:   s.src,
	}
	return dist.Rand()
}

// Beta draws from a Beta(alpha, beta) distribution on the unit interval.
func (s *Stream) Beta(alpha, beta float64) float64 {
	dist := distuv.Beta{Alpha: alpha, Beta: beta, Src: s.src}
	return dist.Rand()
}

// Bernoulli reports a success draw with probability p.
func (s *Stream) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	return s.r.Float64() < p
}

// IntBetween draws a uniform integer in [lo, hi).
func (s *Stream) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Intn(hi-lo)
}

// Float64 draws a uniform value in [0, 1).
func (s *Stream) Float64() float64 {
	return s.r.Float64()
}

// Multinomial distributes trials across the weight vector by inverse-CDF
// sampling. Weights need not be normalized; the returned counts are
// non-negative and sum exactly to trials.
func (s *Stream) Multinomial(trials int, weights []float64) []int {
	counts := make([]int, len(weights))
	if trials <= 0 || len(weights) == 0 {
		return counts
	}

	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	if total <= 0 {
		return counts
	}

	for t := 0; t < trials; t++ {
		u := s.r.Float64() * total
		idx := sort.SearchFloat64s(cum, u)
		if idx >= len(counts) {
			idx = len(counts) - 1
		}
		counts[idx]++
	}
	return counts
}

// WeightedChoice draws one key from a weighted categorical table over the given
// key order. Weights are renormalized implicitly; keys with zero weight are
// never drawn.
func (s *Stream) WeightedChoice(keys []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	u := s.r.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return keys[i]
		}
	}
	return keys[len(keys)-1]
}

// SampleCaseIndexes draws k distinct indexes from [0, n) without replacement.
func (s *Stream) SampleCaseIndexes(n, k int) []int {
	if k > n {
		k = n
	}
	perm := s.r.Perm(n)
	picked := perm[:k]
	out := make([]int, k)
	copy(out, picked)
	sort.Ints(out)
	return out
}
