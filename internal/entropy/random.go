// Package entropy provides the seeded random streams a run draws from, and
// crypto/rand seeding when no seed is given.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"
)

// Stream offsets keep independent consumers of one run seed from sharing a
// sequence. Adding a consumer never shifts the draws of the others.
const (
	StreamTerrain int64 = 100 // Food and wall placement
	StreamColony  int64 = 300 // Agent decisions
	StreamBatch   int64 = 500 // Per-run seeds of a parameter sweep
)

// NewRand returns the deterministic stream for seed and offset.
func NewRand(seed, stream int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed + stream))
}

// ResolveSeed returns seed unchanged unless it is 0, in which case a fresh
// non-zero seed is drawn so the run can still be reproduced later.
func ResolveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := CryptoSeed()
	slog.Debug("random seed chosen", "seed", s)
	return s
}

// CryptoSeed returns a positive seed from crypto/rand, falling back to the
// clock if the system source fails.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Debug("crypto/rand failed, seeding from clock", "error", err)
		return time.Now().UnixNano()&(1<<62-1) | 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 2)
	if s == 0 {
		s = 1
	}
	return s
}
