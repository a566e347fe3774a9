// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracles implements the status-consensus engine: oracle
// registration with random index assignment, status-check request
// emission, response tallying and the one-time finalization that
// settles insurances.
package oracles

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/events"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/status"
	"github.com/luxfi/surety/utils/timer/mockable"
)

var (
	ErrInsufficientFunds = errors.New("fee below oracle registration fee")
	ErrAlreadyRegistered = errors.New("oracle already registered")
	ErrNotRegistered     = errors.New("oracle is not registered")
	ErrUnauthorized      = errors.New("index is not assigned to this oracle")
	ErrUnknownFlight     = errors.New("flight does not exist")
	ErrRequestMismatch   = errors.New("no matching status-check request")
	ErrInvalidStatus     = errors.New("invalid status code")
)

// Settler is the escrow engine's settlement entrypoint, invoked
// synchronously inside the finalizing call.
type Settler interface {
	Settle(flightKey ids.ID, code status.Code) error
}

// Engine runs the oracle request/response protocol.
type Engine struct {
	cfg     *config.Config
	state   state.State
	log     log.Logger
	events  events.Emitter
	entropy Entropy
	clock   *mockable.Clock
	settler Settler
}

func New(
	cfg *config.Config,
	st state.State,
	log log.Logger,
	emitter events.Emitter,
	entropy Entropy,
	clock *mockable.Clock,
	settler Settler,
) *Engine {
	return &Engine{
		cfg:     cfg,
		state:   st,
		log:     log,
		events:  emitter,
		entropy: entropy,
		clock:   clock,
		settler: settler,
	}
}

// Register admits an oracle and assigns its immutable indexes.
func (e *Engine) Register(caller ids.ShortID, fee uint64) ([]uint8, error) {
	if fee < e.cfg.OracleFee {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientFunds, fee, e.cfg.OracleFee)
	}

	if _, err := e.state.GetOracle(caller); err == nil {
		return nil, ErrAlreadyRegistered
	} else if err != database.ErrNotFound {
		return nil, err
	}

	nonce, err := e.state.NextNonce()
	if err != nil {
		return nil, err
	}
	indexes := e.entropy.Indexes(caller, nonce, e.cfg.IndexesPerOracle, e.cfg.IndexRange)

	oracle := &state.Oracle{
		ID:      caller,
		Indexes: indexes,
	}
	if err := e.state.PutOracle(oracle); err != nil {
		return nil, err
	}

	e.log.Info("oracle registered",
		"oracle", caller,
		"indexes", fmt.Sprint(indexes),
	)
	e.events.Emit(&events.OracleRegistered{
		Oracle:  caller,
		Indexes: indexes,
	})
	return indexes, nil
}

// Indexes returns the caller's assigned indexes. The assignment is
// immutable, so repeated calls always agree.
func (e *Engine) Indexes(caller ids.ShortID) ([]uint8, error) {
	oracle, err := e.state.GetOracle(caller)
	if err == database.ErrNotFound {
		return nil, ErrNotRegistered
	} else if err != nil {
		return nil, err
	}
	return oracle.Indexes, nil
}

// FetchFlightStatus opens a status check for the flight, keyed by a
// derived index. Oracles holding that index are expected to respond.
func (e *Engine) FetchFlightStatus(airline ids.ShortID, flightName string, departure uint64, caller ids.ShortID) (uint8, uint64, error) {
	flightKey := state.FlightKey(airline, flightName, departure)
	if _, err := e.state.GetFlight(flightKey); err == database.ErrNotFound {
		return 0, 0, ErrUnknownFlight
	} else if err != nil {
		return 0, 0, err
	}

	nonce, err := e.state.NextNonce()
	if err != nil {
		return 0, 0, err
	}
	index := e.entropy.RequestIndex(caller, nonce, flightKey, e.cfg.IndexRange)
	now := e.clock.Unix()

	request := &state.Request{
		Index:       index,
		FlightKey:   flightKey,
		RequestedAt: now,
		Open:        true,
	}
	if err := e.state.PutRequest(request); err != nil {
		return 0, 0, err
	}

	e.log.Info("status check requested",
		"index", index,
		"airline", airline,
		"flight", flightName,
		"departure", departure,
	)
	e.events.Emit(&events.OracleRequest{
		Index:     index,
		Airline:   airline,
		Flight:    flightName,
		Departure: departure,
		Timestamp: now,
	})
	return index, now, nil
}

// SubmitResponse records an oracle's report. When a status code
// reaches quorum the request closes, the flight is finalized and all
// of its insurances are settled within this call. Responses arriving
// after the request closed are recorded but change nothing.
func (e *Engine) SubmitResponse(index uint8, airline ids.ShortID, flightName string, departure uint64, code status.Code, caller ids.ShortID) (bool, error) {
	if err := code.Valid(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	if code == status.Unknown {
		// Unknown is the pre-finalization default, not a reportable
		// outcome.
		return false, ErrInvalidStatus
	}

	oracle, err := e.state.GetOracle(caller)
	if err == database.ErrNotFound {
		return false, ErrNotRegistered
	} else if err != nil {
		return false, err
	}
	if !oracle.HasIndex(index) {
		return false, ErrUnauthorized
	}

	flightKey := state.FlightKey(airline, flightName, departure)
	reqKey := state.RequestKey(index, flightKey)
	request, err := e.state.GetRequest(reqKey)
	if err == database.ErrNotFound {
		return false, ErrRequestMismatch
	} else if err != nil {
		return false, err
	}

	duplicate, err := e.state.HasResponse(reqKey, uint32(code), caller)
	if err != nil {
		return false, err
	}
	if duplicate {
		// Reporter sets are sets; a repeated report neither counts
		// again nor fails.
		return false, nil
	}

	count, err := e.state.AddResponse(reqKey, uint32(code), caller)
	if err != nil {
		return false, err
	}

	e.events.Emit(&events.OracleReport{
		Oracle:    caller,
		Index:     index,
		FlightKey: flightKey,
		Status:    code,
		Counted:   request.Open,
	})

	if !request.Open {
		// Late straggler after quorum: kept for the audit trail,
		// deliberately inert.
		e.log.Debug("late oracle response ignored",
			"oracle", caller,
			"index", index,
			"flightKey", flightKey,
		)
		return false, nil
	}

	if count < uint64(e.cfg.OracleQuorum) {
		return false, nil
	}

	// Quorum reached: the first code to get there wins and is final.
	request.Open = false
	if err := e.state.PutRequest(request); err != nil {
		return false, err
	}

	flight, err := e.state.GetFlight(flightKey)
	if err != nil {
		return false, err
	}
	if flight.Status.Settled() {
		// A re-requested check on an already-finalized flight closes
		// without touching the settled outcome.
		return false, nil
	}
	flight.Status = code
	if err := e.state.PutFlight(flight); err != nil {
		return false, err
	}

	e.log.Info("flight status finalized",
		"airline", airline,
		"flight", flightName,
		"departure", departure,
		"status", code,
	)
	e.events.Emit(&events.FlightStatusInfo{
		Airline:   airline,
		Flight:    flightName,
		Departure: departure,
		Status:    code,
	})

	return true, e.settler.Settle(flightKey, code)
}
