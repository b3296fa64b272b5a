// Package entropy provides the single random source a run draws from.
// A zero seed is replaced by one read from crypto/rand so unseeded runs still
// report a seed that reproduces them.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"time"
)

// Resolve returns seed unchanged, or a fresh non-zero seed when seed is 0.
func Resolve(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	s := cryptoSeed()
	slog.Debug("resolved random seed", "seed", s)
	return s
}

// NewRand returns the RNG handle for a run. Generation and the move loop
// must share it so that a seed fixes the whole trajectory.
func NewRand(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// cryptoSeed reads a positive seed from crypto/rand.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Never expected; fall back to the clock so runs still differ.
		return time.Now().UnixNano() | 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}
