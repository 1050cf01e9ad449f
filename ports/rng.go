package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations.
// Every returned generator is owned by the caller; implementations never hand
// out a shared instance, so concurrent workers each get an independent stream.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for a run/stage/key triple.
	// Bootstrap workers use the key to obtain one stream each.
	Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error)
}
