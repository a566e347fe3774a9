// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"

	"github.com/luxfi/ids"

	"github.com/luxfi/surety/utils/hashing"
)

// FlightKey derives the key of the (airline, name, departure) triple.
// The name is length-prefixed so distinct triples can never collide on
// concatenation.
func FlightKey(airline ids.ShortID, name string, departure uint64) ids.ID {
	buf := make([]byte, 0, ids.ShortIDLen+4+len(name)+8)
	buf = append(buf, airline[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(name)))
	buf = append(buf, name...)
	buf = binary.BigEndian.AppendUint64(buf, departure)
	return hashing.ComputeHash256Array(buf)
}

// InsuranceKey derives the key of a ticket policy under a flight.
func InsuranceKey(flightKey ids.ID, ticket string) ids.ID {
	buf := make([]byte, 0, ids.IDLen+len(ticket))
	buf = append(buf, flightKey[:]...)
	buf = append(buf, ticket...)
	return hashing.ComputeHash256Array(buf)
}

// RequestKey derives the key of a status-check request.
func RequestKey(index uint8, flightKey ids.ID) ids.ID {
	buf := make([]byte, 0, 1+ids.IDLen)
	buf = append(buf, index)
	buf = append(buf, flightKey[:]...)
	return hashing.ComputeHash256Array(buf)
}

func voteKey(candidate ids.ShortID, voter ids.ShortID) []byte {
	buf := make([]byte, 0, 2*ids.ShortIDLen)
	buf = append(buf, candidate[:]...)
	buf = append(buf, voter[:]...)
	return buf
}

func ticketKey(flightKey ids.ID, ticket string) []byte {
	buf := make([]byte, 0, ids.IDLen+len(ticket))
	buf = append(buf, flightKey[:]...)
	buf = append(buf, ticket...)
	return buf
}

func secondaryKey(prefix []byte, key ids.ID) []byte {
	buf := make([]byte, 0, len(prefix)+ids.IDLen)
	buf = append(buf, prefix...)
	buf = append(buf, key[:]...)
	return buf
}

func responseKey(reqKey ids.ID, code uint32, reporter ids.ShortID) []byte {
	buf := responseCountKey(reqKey, code)
	return append(buf, reporter[:]...)
}

func responseCountKey(reqKey ids.ID, code uint32) []byte {
	buf := make([]byte, 0, ids.IDLen+4+ids.ShortIDLen)
	buf = append(buf, reqKey[:]...)
	return binary.BigEndian.AppendUint32(buf, code)
}
