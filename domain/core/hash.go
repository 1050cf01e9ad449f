package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Fingerprint identifies a validation input: the series values, the
// configuration knobs and the seed. Two runs with equal fingerprints are
// expected to produce identical verdicts, so callers may key caches on it.
type Fingerprint Hash

func (f Fingerprint) String() string { return Hash(f).String() }

// ComputeFingerprint hashes values bit-for-bit and params in sorted key order.
func ComputeFingerprint(values []float64, params map[string]interface{}, seed int64) Fingerprint {
	h := sha256.New()

	buf := make([]byte, 8)
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString("=")
		data.WriteString(fmt.Sprintf("%v", params[key]))
		data.WriteString(";")
	}
	data.WriteString(fmt.Sprintf("seed=%d", seed))
	h.Write([]byte(data.String()))

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
