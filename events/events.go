// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the notifications emitted by the surety
// engines for UI clients and oracle-simulation processes.
package events

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/status"
)

// Event is a notification emitted by an engine. Addresses returns the
// principals involved, used for subscription filtering.
type Event interface {
	Addresses() [][]byte
}

// Emitter receives events as they are produced. Implementations must
// not call back into the engines.
type Emitter interface {
	Emit(Event)
}

// AirlineRegistered fires when an airline record is created or flips
// to registered. Registered is false for candidates parked pending
// votes.
type AirlineRegistered struct {
	Airline    ids.ShortID `json:"airline"`
	Name       string      `json:"name"`
	Registered bool        `json:"registered"`
}

func (e *AirlineRegistered) Addresses() [][]byte {
	return [][]byte{e.Airline[:]}
}

// AirlineFunded fires when an airline deposits its stake.
type AirlineFunded struct {
	Airline ids.ShortID `json:"airline"`
	Amount  uint64      `json:"amount"`
}

func (e *AirlineFunded) Addresses() [][]byte {
	return [][]byte{e.Airline[:]}
}

// FlightRegistered fires when a funded airline registers a flight.
type FlightRegistered struct {
	Airline   ids.ShortID `json:"airline"`
	Flight    string      `json:"flight"`
	Departure uint64      `json:"departure"`
	FlightKey ids.ID      `json:"flightKey"`
}

func (e *FlightRegistered) Addresses() [][]byte {
	return [][]byte{e.Airline[:]}
}

// InsuranceBought fires on a successful ticket policy purchase.
type InsuranceBought struct {
	FlightKey ids.ID      `json:"flightKey"`
	Ticket    string      `json:"ticket"`
	Buyer     ids.ShortID `json:"buyer"`
	Amount    uint64      `json:"amount"`
}

func (e *InsuranceBought) Addresses() [][]byte {
	return [][]byte{e.Buyer[:]}
}

// OracleRegistered fires when an oracle pays its fee and receives its
// index assignment.
type OracleRegistered struct {
	Oracle  ids.ShortID `json:"oracle"`
	Indexes []uint8     `json:"indexes"`
}

func (e *OracleRegistered) Addresses() [][]byte {
	return [][]byte{e.Oracle[:]}
}

// OracleRequest fires when a status check opens. Oracle processes
// holding the index are expected to respond.
type OracleRequest struct {
	Index     uint8       `json:"index"`
	Airline   ids.ShortID `json:"airline"`
	Flight    string      `json:"flight"`
	Departure uint64      `json:"departure"`
	Timestamp uint64      `json:"timestamp"`
}

func (e *OracleRequest) Addresses() [][]byte {
	return [][]byte{e.Airline[:]}
}

// OracleReport fires on every accepted oracle response, including
// responses that arrive after the request closed.
type OracleReport struct {
	Oracle    ids.ShortID `json:"oracle"`
	Index     uint8       `json:"index"`
	FlightKey ids.ID      `json:"flightKey"`
	Status    status.Code `json:"status"`
	Counted   bool        `json:"counted"`
}

func (e *OracleReport) Addresses() [][]byte {
	return [][]byte{e.Oracle[:]}
}

// FlightStatusInfo fires exactly once per flight, when a status code
// reaches quorum and the flight is finalized.
type FlightStatusInfo struct {
	Airline   ids.ShortID `json:"airline"`
	Flight    string      `json:"flight"`
	Departure uint64      `json:"departure"`
	Status    status.Code `json:"status"`
}

func (e *FlightStatusInfo) Addresses() [][]byte {
	return [][]byte{e.Airline[:]}
}

// CreditDrawed fires when a credited passenger withdraws funds from
// escrow.
type CreditDrawed struct {
	FlightKey ids.ID      `json:"flightKey"`
	Ticket    string      `json:"ticket"`
	Buyer     ids.ShortID `json:"buyer"`
	Amount    uint64      `json:"amount"`
}

func (e *CreditDrawed) Addresses() [][]byte {
	return [][]byte{e.Buyer[:]}
}
