// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"

	"github.com/luxfi/constants"
)

var Default = Config{
	BootstrapAirlines: 4,
	AirlineFunding:    10 * constants.Lux,
	InsuranceCap:      constants.Lux,
	PayoutNumerator:   3,
	PayoutDenominator: 2,
	OracleFee:         constants.Lux,
	OracleQuorum:      3,
	IndexesPerOracle:  3,
	IndexRange:        10,
}

// Config contains all of the user-configurable parameters of the
// Surety VM.
type Config struct {
	// BootstrapAirlines is the number of airlines admitted directly,
	// before admission requires a vote of the funded set.
	BootstrapAirlines uint64 `json:"bootstrap-airlines"`

	// AirlineFunding is the minimum stake an airline must deposit
	// before it may vote or register flights.
	AirlineFunding uint64 `json:"airline-funding"`

	// InsuranceCap is the maximum payment accepted for a single
	// ticket policy.
	InsuranceCap uint64 `json:"insurance-cap"`

	// PayoutNumerator/PayoutDenominator express the credit multiple
	// applied to the paid premium when a delay is attributed to the
	// airline. The default 3/2 credits 1.5x.
	PayoutNumerator   uint64 `json:"payout-numerator"`
	PayoutDenominator uint64 `json:"payout-denominator"`

	// OracleFee is the registration fee paid by an oracle.
	OracleFee uint64 `json:"oracle-fee"`

	// OracleQuorum is the number of independent matching reports
	// required to finalize a flight status.
	OracleQuorum uint32 `json:"oracle-quorum"`

	// IndexesPerOracle is the number of lookup indexes assigned to
	// each oracle at registration.
	IndexesPerOracle int `json:"indexes-per-oracle"`

	// IndexRange bounds assigned and requested indexes to
	// [0, IndexRange).
	IndexRange uint8 `json:"index-range"`
}

// Validate returns an error if the config cannot produce a working
// engine set.
func (c *Config) Validate() error {
	switch {
	case c.PayoutDenominator == 0:
		return errors.New("payout denominator must be non-zero")
	case c.OracleQuorum == 0:
		return errors.New("oracle quorum must be non-zero")
	case c.IndexesPerOracle <= 0:
		return errors.New("indexes per oracle must be positive")
	case c.IndexRange == 0:
		return errors.New("index range must be non-zero")
	case c.IndexesPerOracle > int(c.IndexRange):
		// The distinct-index draw can never produce more indexes than
		// the range holds.
		return errors.New("index range must be at least indexes per oracle")
	default:
		return nil
	}
}

// GetConfig returns a Config from the provided json encoded bytes. If
// a parameter is not provided in the bytes, the default value is set.
// If empty bytes are provided, the default config is returned.
func GetConfig(b []byte) (*Config, error) {
	ec := Default

	// An empty slice is invalid json, so handle that as a special case.
	if len(b) == 0 {
		return &ec, nil
	}

	if err := json.Unmarshal(b, &ec); err != nil {
		return nil, err
	}
	return &ec, ec.Validate()
}
