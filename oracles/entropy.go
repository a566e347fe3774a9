// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracles

import (
	"encoding/binary"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/utils/hashing"
	"github.com/luxfi/surety/utils/timer/mockable"
)

// Entropy derives the pseudo-random indexes that route status checks
// to a subset of oracles. The derivation mixes caller identity, a
// per-state nonce and the clock; it is weak randomness — enough to
// keep casual participants from predicting assignments, not
// adversarial-grade. Assignments are stored, so re-derivation never
// has to reproduce past draws.
type Entropy interface {
	// Indexes returns n distinct indexes in [0, rangeSize) for a
	// registering oracle. rangeSize must be at least n.
	Indexes(caller ids.ShortID, nonce uint64, n int, rangeSize uint8) []uint8

	// RequestIndex returns the index a new status check is keyed by.
	RequestIndex(caller ids.ShortID, nonce uint64, flightKey ids.ID, rangeSize uint8) uint8
}

type hashEntropy struct {
	clock *mockable.Clock
}

// NewEntropy returns the digest-based Entropy used in production.
func NewEntropy(clock *mockable.Clock) Entropy {
	return &hashEntropy{clock: clock}
}

func (h *hashEntropy) Indexes(caller ids.ShortID, nonce uint64, n int, rangeSize uint8) []uint8 {
	indexes := make([]uint8, 0, n)
	seen := set.NewSet[uint8](n)
	for round := uint64(0); len(indexes) < n; round++ {
		idx := h.draw(caller, nonce, round, nil, rangeSize)
		if seen.Contains(idx) {
			continue
		}
		seen.Add(idx)
		indexes = append(indexes, idx)
	}
	return indexes
}

func (h *hashEntropy) RequestIndex(caller ids.ShortID, nonce uint64, flightKey ids.ID, rangeSize uint8) uint8 {
	return h.draw(caller, nonce, 0, flightKey[:], rangeSize)
}

func (h *hashEntropy) draw(caller ids.ShortID, nonce, round uint64, extra []byte, rangeSize uint8) uint8 {
	buf := make([]byte, 0, ids.ShortIDLen+3*8+len(extra))
	buf = append(buf, caller[:]...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	buf = binary.BigEndian.AppendUint64(buf, round)
	buf = binary.BigEndian.AppendUint64(buf, h.clock.Unix())
	buf = append(buf, extra...)
	digest := hashing.ComputeHash256(buf)
	return uint8(binary.BigEndian.Uint64(digest[:8]) % uint64(rangeSize))
}

// FixedEntropy returns pre-set values, for tests.
type FixedEntropy struct {
	Assigned []uint8
	Request  uint8
}

func (f *FixedEntropy) Indexes(ids.ShortID, uint64, int, uint8) []uint8 {
	return f.Assigned
}

func (f *FixedEntropy) RequestIndex(ids.ShortID, uint64, ids.ID, uint8) uint8 {
	return f.Request
}
