// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger abstracts the value-transfer substrate. The engines
// never hold funds themselves: inbound payments arrive as
// substrate-authenticated amounts on each call, and outbound credits
// leave escrow through Deposit after the engine's own bookkeeping has
// settled.
package ledger

import (
	"sync"

	"github.com/luxfi/ids"

	safemath "github.com/luxfi/surety/utils/math"
)

// Ledger moves value out of the escrow pot to an account.
type Ledger interface {
	Deposit(to ids.ShortID, amount uint64) error
}

// Memory is an in-memory Ledger for the runner and tests. It is safe
// for concurrent use.
type Memory struct {
	mu       sync.Mutex
	balances map[ids.ShortID]uint64
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[ids.ShortID]uint64),
	}
}

func (m *Memory) Deposit(to ids.ShortID, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, err := safemath.Add(m.balances[to], amount)
	if err != nil {
		return err
	}
	m.balances[to] = balance
	return nil
}

// Balance returns the accumulated deposits of an account.
func (m *Memory) Balance(of ids.ShortID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[of]
}
