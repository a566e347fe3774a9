// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package status defines the flight status vocabulary reported by
// oracles and recorded on flights.
package status

import "fmt"

// Code is a flight status code. The gaps in the numbering are
// inherited from the wire format consumed by oracle processes.
type Code uint32

const (
	Unknown       Code = 0
	OnTime        Code = 10
	LateAirline   Code = 20
	LateWeather   Code = 30
	LateTechnical Code = 40
	LateOther     Code = 50
)

// Valid returns nil if the code is a known status.
func (c Code) Valid() error {
	switch c {
	case Unknown, OnTime, LateAirline, LateWeather, LateTechnical, LateOther:
		return nil
	default:
		return fmt.Errorf("invalid status code %d", uint32(c))
	}
}

func (c Code) String() string {
	switch c {
	case Unknown:
		return "Unknown"
	case OnTime:
		return "OnTime"
	case LateAirline:
		return "LateAirline"
	case LateWeather:
		return "LateWeather"
	case LateTechnical:
		return "LateTechnical"
	case LateOther:
		return "LateOther"
	default:
		return fmt.Sprintf("Invalid(%d)", uint32(c))
	}
}

// Settled returns true once a flight has been finalized with this
// code. A flight still at Unknown has no settled outcome.
func (c Code) Settled() bool {
	return c != Unknown
}
