// Package random provides seed generation for the pseudo-random sources used
// by option sampling and tie-breaking.
//
// Seeds come from crypto/rand; the generators themselves are math/rand so a
// fixed seed reproduces a voting round exactly in tests and playtests.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a generator for seed. A zero seed draws a fresh one from
// NewSeed.
func NewRand(seed int64) (*rand.Rand, error) {
	if seed == 0 {
		fresh, err := NewSeed()
		if err != nil {
			return nil, err
		}
		seed = fresh
	}
	return rand.New(rand.NewSource(seed)), nil
}
