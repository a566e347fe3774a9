// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package airlines implements the admission consensus engine: which
// airlines are members of the federation, which have staked, and which
// may register flights.
package airlines

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
)

var (
	ErrUnauthorized      = errors.New("caller is not a funded, registered airline")
	ErrUnknownAirline    = errors.New("airline does not exist")
	ErrAlreadyExists     = errors.New("airline already exists")
	ErrAlreadyFunded     = errors.New("airline already funded")
	ErrInsufficientFunds = errors.New("payment below required funding")
	ErrDuplicateVote     = errors.New("caller already voted for this candidate")
	ErrFlightExists      = errors.New("flight already registered")
	ErrUnknownFlight     = errors.New("flight does not exist")
	ErrFlightSettled     = errors.New("flight status already finalized")
	ErrNoTickets         = errors.New("flight requires at least one ticket number")
)

// Engine runs airline admission and flight registration over the
// shared state. All methods assume the substrate serializes calls.
type Engine struct {
	cfg    *config.Config
	state  state.State
	log    log.Logger
	events events.Emitter
}

func New(cfg *config.Config, st state.State, log log.Logger, emitter events.Emitter) *Engine {
	return &Engine{
		cfg:    cfg,
		state:  st,
		log:    log,
		events: emitter,
	}
}

// Bootstrap admits the founding airline directly. It is called once,
// before any caller-gated operation is possible (the very first
// registration has no funded airline to authorize it).
func (e *Engine) Bootstrap(first ids.ShortID, name string) error {
	if _, err := e.state.GetAirline(first); err == nil {
		return nil
	} else if err != database.ErrNotFound {
		return err
	}
	return e.admit(&state.Airline{
		ID:   first,
		Name: name,
	})
}

// RegisterAirline admits a candidate directly while the registered set
// is below the bootstrap threshold; afterwards the candidate is parked
// pending votes of the funded set.
func (e *Engine) RegisterAirline(candidate ids.ShortID, name string, caller ids.ShortID) error {
	if err := e.requireMember(caller); err != nil {
		return err
	}

	registered, err := e.state.RegisteredAirlineCount()
	if err != nil {
		return err
	}

	existing, err := e.state.GetAirline(candidate)
	switch {
	case err == nil && existing.Registered:
		// Re-registering a registered airline is a no-op.
		return nil
	case err == nil && registered < e.cfg.BootstrapAirlines:
		// A pending candidate cannot be re-admitted directly once it
		// exists; its fate is decided by votes.
		return fmt.Errorf("%w: %s is pending votes", ErrAlreadyExists, candidate)
	case err == nil:
		// Pending, still collecting votes.
		return nil
	case err != database.ErrNotFound:
		return err
	}

	airline := &state.Airline{
		ID:   candidate,
		Name: name,
	}
	if registered < e.cfg.BootstrapAirlines {
		return e.admit(airline)
	}

	// Parked unregistered, awaiting votes.
	existCount, err := e.state.ExistAirlineCount()
	if err != nil {
		return err
	}
	if err := e.state.SetExistAirlineCount(existCount + 1); err != nil {
		return err
	}
	if err := e.state.PutAirline(airline); err != nil {
		return err
	}

	e.log.Debug("airline parked pending votes",
		"candidate", candidate,
		"registeredAirlines", registered,
	)
	e.events.Emit(&events.AirlineRegistered{
		Airline:    candidate,
		Name:       name,
		Registered: false,
	})
	return nil
}

// FundAirline deposits an airline's stake. The payment must meet the
// configured minimum; only the airline itself may fund.
func (e *Engine) FundAirline(airline ids.ShortID, caller ids.ShortID, payment uint64) error {
	if caller != airline {
		return fmt.Errorf("%w: only the airline may fund itself", ErrUnauthorized)
	}

	record, err := e.state.GetAirline(airline)
	if err == database.ErrNotFound {
		return ErrUnknownAirline
	} else if err != nil {
		return err
	}

	if payment < e.cfg.AirlineFunding {
		return fmt.Errorf("%w: got %d, need %d", ErrInsufficientFunds, payment, e.cfg.AirlineFunding)
	}
	if record.Funded {
		return ErrAlreadyFunded
	}

	record.Funded = true
	if err := e.state.PutAirline(record); err != nil {
		return err
	}

	funded, err := e.state.FundedAirlineCount()
	if err != nil {
		return err
	}
	if err := e.state.SetFundedAirlineCount(funded + 1); err != nil {
		return err
	}

	e.log.Info("airline funded",
		"airline", airline,
		"amount", payment,
	)
	e.events.Emit(&events.AirlineFunded{
		Airline: airline,
		Amount:  payment,
	})
	return nil
}

// VoteForAirline records the caller's admission vote. When the
// candidate's votes reach half of the funded set (ties favor
// admission), it becomes registered.
func (e *Engine) VoteForAirline(candidate ids.ShortID, caller ids.ShortID) error {
	if err := e.requireMember(caller); err != nil {
		return err
	}

	record, err := e.state.GetAirline(candidate)
	if err == database.ErrNotFound {
		return ErrUnknownAirline
	} else if err != nil {
		return err
	}

	voted, err := e.state.HasVoted(candidate, caller)
	if err != nil {
		return err
	}
	if voted {
		return ErrDuplicateVote
	}

	if err := e.state.AddVote(candidate, caller); err != nil {
		return err
	}
	record.VoteCount++

	funded, err := e.state.FundedAirlineCount()
	if err != nil {
		return err
	}

	// Vote history persists after admission; only the transition is
	// gated.
	if !record.Registered && record.VoteCount*2 >= funded {
		return e.admit(record)
	}
	return e.state.PutAirline(record)
}

// RegisterFlight creates a flight with its ticket whitelist. Only
// funded, registered airlines may register flights, and only for
// themselves.
func (e *Engine) RegisterFlight(caller ids.ShortID, name string, departure uint64, tickets []string) (ids.ID, error) {
	if err := e.requireMember(caller); err != nil {
		return ids.Empty, err
	}
	if len(tickets) == 0 {
		return ids.Empty, ErrNoTickets
	}

	flight := &state.Flight{
		Airline:   caller,
		Name:      name,
		Departure: departure,
		Status:    status.Unknown,
	}
	key := flight.Key()

	if _, err := e.state.GetFlight(key); err == nil {
		return ids.Empty, ErrFlightExists
	} else if err != database.ErrNotFound {
		return ids.Empty, err
	}

	if err := e.state.PutFlight(flight); err != nil {
		return ids.Empty, err
	}
	for _, ticket := range tickets {
		if err := e.state.AddTicket(key, ticket); err != nil {
			return ids.Empty, err
		}
	}

	e.log.Info("flight registered",
		"airline", caller,
		"flight", name,
		"departure", departure,
		"tickets", len(tickets),
	)
	e.events.Emit(&events.FlightRegistered{
		Airline:   caller,
		Flight:    name,
		Departure: departure,
		FlightKey: key,
	})
	return key, nil
}

// AddTickets extends a flight's ticket whitelist. Only the owning
// airline may add, and only before the flight's outcome is known.
func (e *Engine) AddTickets(caller ids.ShortID, name string, departure uint64, tickets []string) error {
	key := state.FlightKey(caller, name, departure)
	flight, err := e.state.GetFlight(key)
	if err == database.ErrNotFound {
		return ErrUnknownFlight
	} else if err != nil {
		return err
	}
	if flight.Status.Settled() {
		return ErrFlightSettled
	}
	for _, ticket := range tickets {
		if err := e.state.AddTicket(key, ticket); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) admit(airline *state.Airline) error {
	registered, err := e.state.RegisteredAirlineCount()
	if err != nil {
		return err
	}
	if err := e.state.SetRegisteredAirlineCount(registered + 1); err != nil {
		return err
	}
	if !airline.Registered && airline.VoteCount == 0 {
		// Direct admission of a brand-new record.
		existCount, err := e.state.ExistAirlineCount()
		if err != nil {
			return err
		}
		if err := e.state.SetExistAirlineCount(existCount + 1); err != nil {
			return err
		}
	}

	airline.Registered = true
	if err := e.state.PutAirline(airline); err != nil {
		return err
	}

	e.log.Info("airline registered",
		"airline", airline.ID,
		"votes", airline.VoteCount,
	)
	e.events.Emit(&events.AirlineRegistered{
		Airline:    airline.ID,
		Name:       airline.Name,
		Registered: true,
	})
	return nil
}

func (e *Engine) requireMember(caller ids.ShortID) error {
	airline, err := e.state.GetAirline(caller)
	if err == database.ErrNotFound {
		return ErrUnauthorized
	} else if err != nil {
		return err
	}
	if !airline.Registered || !airline.Funded {
		return ErrUnauthorized
	}
	return nil
}
