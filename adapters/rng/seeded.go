// Package rng implements ports.RNGPort with math/rand sources derived from
// a base seed and a stream name.
package rng

import (
	"context"
	"math/rand"

	"overfitguard/ports"
)

// SeededAdapter hands out independent generators. It holds no generator
// state itself and is safe for concurrent use.
type SeededAdapter struct{}

var _ ports.RNGPort = (*SeededAdapter)(nil)

func NewSeededAdapter() *SeededAdapter {
	return &SeededAdapter{}
}

// SeededStream creates a generator seeded with seed mixed with name.
func (r *SeededAdapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return rand.New(rand.NewSource(seed)), nil
	}
	return rand.New(rand.NewSource(seed + int64(hashString(name)))), nil
}

// Stream derives a seed from runID, stageName and key so that the same
// triple always reproduces the same draws.
func (r *SeededAdapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := baseSeed
	if runID != "" {
		seed = int64(hashString(runID)) + seed
	}
	if stageName != "" {
		seed = int64(hashString(stageName))*31 + seed
	}
	if key != "" {
		seed = int64(hashString(key))*131 + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString is djb2.
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c)
	}
	return hash
}
