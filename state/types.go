// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/status"
)

// InsuranceState is the lifecycle state of a ticket policy. States only
// ever move forward; a policy is never reopened.
type InsuranceState uint8

const (
	// InsuranceUnknown is never stored; it marks a corrupt record.
	InsuranceUnknown InsuranceState = iota
	// InsuranceOpen is the lazy default for a valid ticket that has
	// not been purchased.
	InsuranceOpen
	InsuranceBought
	InsuranceCredited
	InsuranceExpired
)

func (s InsuranceState) String() string {
	switch s {
	case InsuranceOpen:
		return "Open"
	case InsuranceBought:
		return "Bought"
	case InsuranceCredited:
		return "Credited"
	case InsuranceExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Airline is a federation member. Registered airlines were admitted
// either during bootstrap or by vote of the funded set; funded
// airlines have deposited the required stake.
type Airline struct {
	ID         ids.ShortID `serialize:"true" json:"id"`
	Name       string      `serialize:"true" json:"name"`
	Registered bool        `serialize:"true" json:"registered"`
	Funded     bool        `serialize:"true" json:"funded"`

	// VoteCount mirrors the vote index; the per-voter entries live in
	// their own bucket so duplicate votes can be rejected cheaply.
	VoteCount uint64 `serialize:"true" json:"voteCount"`
}

// Flight is identified by (airline, name, departure); its derived key
// is the hash of that triple. Status is written exactly once, by
// oracle finalization.
type Flight struct {
	Airline   ids.ShortID `serialize:"true" json:"airline"`
	Name      string      `serialize:"true" json:"name"`
	Departure uint64      `serialize:"true" json:"departure"`
	Status    status.Code `serialize:"true" json:"status"`
}

// Key returns the derived flight key.
func (f *Flight) Key() ids.ID {
	return FlightKey(f.Airline, f.Name, f.Departure)
}

// Insurance is a per-ticket policy. Records persist permanently as an
// audit trail; a settled credit is marked by Paid=true and a zeroed
// Credit rather than deletion.
type Insurance struct {
	FlightKey ids.ID         `serialize:"true" json:"flightKey"`
	Ticket    string         `serialize:"true" json:"ticket"`
	Buyer     ids.ShortID    `serialize:"true" json:"buyer"`
	State     InsuranceState `serialize:"true" json:"state"`
	PaidValue uint64         `serialize:"true" json:"paidValue"`
	Credit    uint64         `serialize:"true" json:"credit"`
	Paid      bool           `serialize:"true" json:"paid"`
}

// Key returns the derived insurance key.
func (in *Insurance) Key() ids.ID {
	return InsuranceKey(in.FlightKey, in.Ticket)
}

// Oracle is a registered reporter with an immutable index assignment.
type Oracle struct {
	ID      ids.ShortID `serialize:"true" json:"id"`
	Indexes []uint8     `serialize:"true" json:"indexes"`
}

// HasIndex returns true if idx is among the oracle's assigned indexes.
func (o *Oracle) HasIndex(idx uint8) bool {
	for _, i := range o.Indexes {
		if i == idx {
			return true
		}
	}
	return false
}

// Request is an open status-check keyed by (index, flight). Responses
// submitted after Open flips to false are recorded but inert.
type Request struct {
	Index       uint8  `serialize:"true" json:"index"`
	FlightKey   ids.ID `serialize:"true" json:"flightKey"`
	RequestedAt uint64 `serialize:"true" json:"requestedAt"`
	Open        bool   `serialize:"true" json:"open"`
}

// Key returns the derived request key.
func (r *Request) Key() ids.ID {
	return RequestKey(r.Index, r.FlightKey)
}
