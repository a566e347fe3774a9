// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package insurance implements the escrow engine: per-ticket policy
// purchase, settlement on oracle finalization, and withdrawal of
// credited funds.
package insurance

import (
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/components/ledger"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/events"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/status"
	safemath "github.com/luxfi/surety/utils/math"
)

var (
	ErrUnknownFlight     = errors.New("flight does not exist")
	ErrFlightSettled     = errors.New("flight status already finalized")
	ErrInvalidTicket     = errors.New("ticket is not valid for this flight")
	ErrAlreadyBought     = errors.New("insurance already bought, credited or expired")
	ErrPaymentTooLarge   = errors.New("payment exceeds the insurance cap")
	ErrUnauthorized      = errors.New("caller is not the buyer")
	ErrNothingToWithdraw = errors.New("no credit to withdraw")
)

// Engine runs the ticket-policy state machine. Settlement is driven
// exclusively by the oracle engine's finalization; passengers can only
// buy and withdraw.
type Engine struct {
	cfg    *config.Config
	state  state.State
	ledger ledger.Ledger
	log    log.Logger
	events events.Emitter
}

func New(cfg *config.Config, st state.State, lgr ledger.Ledger, log log.Logger, emitter events.Emitter) *Engine {
	return &Engine{
		cfg:    cfg,
		state:  st,
		ledger: lgr,
		log:    log,
		events: emitter,
	}
}

// Buy purchases insurance on a ticket. The payment is held in escrow
// until the flight's status is finalized.
func (e *Engine) Buy(airline ids.ShortID, flightName string, departure uint64, ticket string, caller ids.ShortID, payment uint64) error {
	flightKey := state.FlightKey(airline, flightName, departure)
	flight, err := e.state.GetFlight(flightKey)
	if err == database.ErrNotFound {
		return ErrUnknownFlight
	} else if err != nil {
		return err
	}
	if flight.Status.Settled() {
		// The outcome is known; nothing is insurable anymore.
		return ErrAlreadyBought
	}

	validTicket, err := e.state.HasTicket(flightKey, ticket)
	if err != nil {
		return err
	}
	if !validTicket {
		return fmt.Errorf("%w: %q", ErrInvalidTicket, ticket)
	}

	insurance, err := e.getOrDefault(flightKey, ticket)
	if err != nil {
		return err
	}
	if insurance.State != state.InsuranceOpen {
		return ErrAlreadyBought
	}
	if payment > e.cfg.InsuranceCap {
		return fmt.Errorf("%w: got %d, cap %d", ErrPaymentTooLarge, payment, e.cfg.InsuranceCap)
	}

	insurance.Buyer = caller
	insurance.State = state.InsuranceBought
	insurance.PaidValue = payment
	if err := e.state.PutInsurance(insurance); err != nil {
		return err
	}

	e.log.Info("insurance bought",
		"flightKey", insurance.FlightKey,
		"ticket", ticket,
		"buyer", caller,
		"amount", payment,
	)
	e.events.Emit(&events.InsuranceBought{
		FlightKey: flightKey,
		Ticket:    ticket,
		Buyer:     caller,
		Amount:    payment,
	})
	return nil
}

// Settle transitions every policy of a finalized flight. Bought
// policies are credited at the configured multiple when the delay is
// attributed to the airline, and expire otherwise; unbought tickets
// expire outright. Called by the oracle engine within the finalizing
// operation, so the whole settlement shares its atomicity.
func (e *Engine) Settle(flightKey ids.ID, code status.Code) error {
	tickets, err := e.state.TicketsByFlight(flightKey)
	if err != nil {
		return err
	}

	credited := 0
	for _, ticket := range tickets {
		insurance, err := e.getOrDefault(flightKey, ticket)
		if err != nil {
			return err
		}

		switch insurance.State {
		case state.InsuranceBought:
			if code == status.LateAirline {
				credit, err := safemath.MulDiv(insurance.PaidValue, e.cfg.PayoutNumerator, e.cfg.PayoutDenominator)
				if err != nil {
					return fmt.Errorf("computing credit for ticket %q: %w", ticket, err)
				}
				insurance.State = state.InsuranceCredited
				insurance.Credit = credit
				credited++
			} else {
				insurance.State = state.InsuranceExpired
				insurance.Credit = 0
			}
		case state.InsuranceOpen:
			insurance.State = state.InsuranceExpired
		default:
			// Already terminal; settlement never revisits.
			continue
		}

		if err := e.state.PutInsurance(insurance); err != nil {
			return err
		}
	}

	e.log.Info("flight settled",
		"flightKey", flightKey,
		"status", code,
		"tickets", len(tickets),
		"credited", credited,
	)
	return nil
}

// Pay withdraws the caller's credit. Bookkeeping is zeroed before the
// external transfer is issued so a re-entrant call observes nothing to
// withdraw.
func (e *Engine) Pay(airline ids.ShortID, flightName string, departure uint64, ticket string, caller ids.ShortID) (uint64, error) {
	flightKey := state.FlightKey(airline, flightName, departure)
	insurance, err := e.state.GetInsurance(state.InsuranceKey(flightKey, ticket))
	if err == database.ErrNotFound {
		return 0, ErrNothingToWithdraw
	} else if err != nil {
		return 0, err
	}

	if insurance.Buyer != caller {
		return 0, ErrUnauthorized
	}
	if insurance.State != state.InsuranceCredited || insurance.Credit == 0 {
		return 0, ErrNothingToWithdraw
	}

	amount := insurance.Credit
	insurance.Credit = 0
	insurance.Paid = true
	if err := e.state.PutInsurance(insurance); err != nil {
		return 0, err
	}

	// State is settled; only now does value leave escrow.
	if err := e.ledger.Deposit(caller, amount); err != nil {
		return 0, err
	}

	e.log.Info("credit drawn",
		"flightKey", flightKey,
		"ticket", ticket,
		"buyer", caller,
		"amount", amount,
	)
	e.events.Emit(&events.CreditDrawed{
		FlightKey: flightKey,
		Ticket:    ticket,
		Buyer:     caller,
		Amount:    amount,
	})
	return amount, nil
}

// Get returns the policy for a ticket, materializing the Open default
// for valid tickets that were never touched.
func (e *Engine) Get(airline ids.ShortID, flightName string, departure uint64, ticket string) (*state.Insurance, error) {
	flightKey := state.FlightKey(airline, flightName, departure)
	if _, err := e.state.GetFlight(flightKey); err == database.ErrNotFound {
		return nil, ErrUnknownFlight
	} else if err != nil {
		return nil, err
	}
	validTicket, err := e.state.HasTicket(flightKey, ticket)
	if err != nil {
		return nil, err
	}
	if !validTicket {
		return nil, ErrInvalidTicket
	}
	return e.getOrDefault(flightKey, ticket)
}

// KeysOf returns the insurance keys held by a passenger.
func (e *Engine) KeysOf(passenger ids.ShortID) ([]ids.ID, error) {
	return e.state.InsuranceKeysByOwner(passenger)
}

// KeysOfFlight returns the insurance keys recorded under a flight.
func (e *Engine) KeysOfFlight(airline ids.ShortID, flightName string, departure uint64) ([]ids.ID, error) {
	flightKey := state.FlightKey(airline, flightName, departure)
	if _, err := e.state.GetFlight(flightKey); err == database.ErrNotFound {
		return nil, ErrUnknownFlight
	} else if err != nil {
		return nil, err
	}
	return e.state.InsuranceKeysByFlight(flightKey)
}

func (e *Engine) getOrDefault(flightKey ids.ID, ticket string) (*state.Insurance, error) {
	insurance, err := e.state.GetInsurance(state.InsuranceKey(flightKey, ticket))
	if err == database.ErrNotFound {
		return &state.Insurance{
			FlightKey: flightKey,
			Ticket:    ticket,
			State:     state.InsuranceOpen,
		}, nil
	}
	return insurance, err
}
