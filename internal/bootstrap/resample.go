package bootstrap

import (
	"math"
	"math/rand"

	"overfitguard/domain/stats"
)

// Resampler fills dst (len(dst) == len(src)) with a surrogate series built
// from blocks of src.
type Resampler interface {
	Policy() stats.ResamplingPolicy
	Resample(rng *rand.Rand, src, dst []float64) blockUsage
}

// blockUsage records how many blocks were drawn and their total drawn length
// before truncation to len(src).
type blockUsage struct {
	blocks int
	drawn  int
}

// Stationary is the Politis-Romano stationary bootstrap: uniformly random
// block starts, geometric block lengths with mean AvgBlockSize, circular
// wrap past the end of the series.
type Stationary struct {
	AvgBlockSize float64
}

func (s Stationary) Policy() stats.ResamplingPolicy { return stats.PolicyStationary }

func (s Stationary) Resample(rng *rand.Rand, src, dst []float64) blockUsage {
	n := len(src)
	var usage blockUsage
	for pos := 0; pos < n; {
		start := rng.Intn(n)
		length := geometricLength(rng, s.AvgBlockSize)
		usage.blocks++
		usage.drawn += length

		for k := 0; k < length && pos < n; k++ {
			dst[pos] = src[(start+k)%n]
			pos++
		}
	}
	return usage
}

// geometricLength draws from Geometric(p = 1/mean) on {1, 2, ...} by
// inversion.
func geometricLength(rng *rand.Rand, mean float64) int {
	if mean <= 1 {
		return 1
	}
	p := 1 / mean
	u := 1 - rng.Float64() // (0, 1]
	length := 1 + int(math.Floor(math.Log(u)/math.Log1p(-p)))
	if length < 1 {
		return 1
	}
	return length
}

// Block is the fixed-length moving block bootstrap. Block starts lie in
// [0, n-BlockSize]; there is no wrap. When the series is shorter than one
// block the original series is returned unchanged.
type Block struct {
	BlockSize int
}

func (b Block) Policy() stats.ResamplingPolicy { return stats.PolicyBlock }

func (b Block) Resample(rng *rand.Rand, src, dst []float64) blockUsage {
	n := len(src)
	if n < b.BlockSize {
		copy(dst, src)
		return blockUsage{blocks: 1, drawn: n}
	}

	var usage blockUsage
	maxStart := n - b.BlockSize
	for pos := 0; pos < n; {
		start := rng.Intn(maxStart + 1)
		usage.blocks++
		usage.drawn += b.BlockSize
		pos += copy(dst[pos:], src[start:start+b.BlockSize])
	}
	return usage
}

// Sample returns one surrogate series of the same length as src.
func Sample(r Resampler, rng *rand.Rand, src []float64) []float64 {
	dst := make([]float64, len(src))
	if len(src) == 0 {
		return dst
	}
	r.Resample(rng, src, dst)
	return dst
}
