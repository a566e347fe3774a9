// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package surety wires the three surety engines — airline admission,
// insurance escrow and oracle status consensus — over a shared
// versioned state and exposes them as a JSON-RPC service. The ledger
// substrate (database, value transfer, caller authentication) is
// injected; every operation commits in full or aborts.
package surety

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/luxfi/pubsub"

	"github.com/luxfi/surety/airlines"
	"github.com/luxfi/surety/components/ledger"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/events"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/metrics"
	"github.com/luxfi/surety/oracles"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/status"
	"github.com/luxfi/surety/utils/json"
	"github.com/luxfi/surety/utils/timer/mockable"
)

var (
	ErrNotOperational      = errors.New("contract is not operational")
	ErrOwnerOnly           = errors.New("caller is not the contract owner")
	ErrCallerNotAuthorized = errors.New("caller is not an authorized principal")
)

// Genesis seeds the initial registry state: the contract owner and
// the founding airline, which is admitted directly.
type Genesis struct {
	Owner            ids.ShortID `json:"owner"`
	FirstAirline     ids.ShortID `json:"firstAirline"`
	FirstAirlineName string      `json:"firstAirlineName"`
}

// VM hosts the surety engines. The single lock realizes the
// substrate's serial execution model: one call, fully atomic, no
// concurrent reader sees intermediate state.
type VM struct {
	lock sync.RWMutex

	cfg     *config.Config
	log     log.Logger
	clock   mockable.Clock
	state   state.State
	ledger  ledger.Ledger
	pubsub  *pubsub.Server
	emitter *pubsubEmitter
	metrics metrics.Metrics

	airlines  *airlines.Engine
	insurance *insurance.Engine
	oracles   *oracles.Engine
}

// Initialize sets up state, engines and handlers. The genesis is
// applied only on a fresh database.
func (vm *VM) Initialize(
	db database.Database,
	configBytes []byte,
	genesis Genesis,
	lgr ledger.Ledger,
	logger log.Logger,
) error {
	cfg, err := config.GetConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	vm.cfg = cfg
	vm.log = logger
	vm.ledger = lgr
	vm.state = state.New(db)
	vm.pubsub = pubsub.New(logger)

	registry := metric.NewRegistry()
	vm.metrics, err = metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	vm.emitter = &pubsubEmitter{server: vm.pubsub}
	vm.airlines = airlines.New(cfg, vm.state, logger, vm.emitter)
	vm.insurance = insurance.New(cfg, vm.state, lgr, logger, vm.emitter)
	vm.oracles = oracles.New(
		cfg,
		vm.state,
		logger,
		vm.emitter,
		oracles.NewEntropy(&vm.clock),
		&vm.clock,
		vm.insurance,
	)

	if err := vm.applyGenesis(genesis); err != nil {
		vm.state.Abort()
		vm.emitter.discard()
		return err
	}
	if err := vm.state.Commit(); err != nil {
		vm.emitter.discard()
		return err
	}
	vm.emitter.flush()
	return nil
}

func (vm *VM) applyGenesis(genesis Genesis) error {
	if _, err := vm.state.Owner(); err == nil {
		// Already initialized.
		return nil
	} else if err != database.ErrNotFound {
		return err
	}

	if err := vm.state.SetOwner(genesis.Owner); err != nil {
		return err
	}
	if err := vm.state.SetOperational(true); err != nil {
		return err
	}
	// The founding airline is approved for registry writes; further
	// principals are approved by the owner through AuthorizeCaller.
	if err := vm.state.Authorize(genesis.FirstAirline); err != nil {
		return err
	}
	return vm.airlines.Bootstrap(genesis.FirstAirline, genesis.FirstAirlineName)
}

// CreateHandlers returns the HTTP surface: the JSON-RPC service at the
// root and the event feed at /events.
func (vm *VM) CreateHandlers() (map[string]http.Handler, error) {
	codec := json.NewCodec()

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(codec, "application/json")
	rpcServer.RegisterCodec(codec, "application/json;charset=UTF-8")
	rpcServer.RegisterInterceptFunc(vm.metrics.InterceptRequest)
	rpcServer.RegisterAfterFunc(vm.metrics.AfterRequest)
	if err := rpcServer.RegisterService(&Service{vm: vm}, "surety"); err != nil {
		return nil, err
	}

	return map[string]http.Handler{
		"":        rpcServer,
		"/events": vm.pubsub,
	}, nil
}

func (vm *VM) Shutdown() error {
	if vm.state == nil {
		return nil
	}
	return vm.state.Close()
}

/*
 ******************************************************************************
 ******************************* Airline engine *******************************
 ******************************************************************************
 */

func (vm *VM) RegisterAirline(candidate ids.ShortID, name string, caller ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	err := vm.runOperational(func() error {
		if err := vm.requireAuthorizedCaller(caller); err != nil {
			return err
		}
		return vm.airlines.RegisterAirline(candidate, name, caller)
	})
	if err == nil {
		vm.metrics.IncAirlinesRegistered()
	}
	return err
}

func (vm *VM) FundAirline(airline ids.ShortID, caller ids.ShortID, payment uint64) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	err := vm.runOperational(func() error {
		if err := vm.requireAuthorizedCaller(caller); err != nil {
			return err
		}
		return vm.airlines.FundAirline(airline, caller, payment)
	})
	if err == nil {
		vm.metrics.IncAirlinesFunded()
	}
	return err
}

func (vm *VM) VoteForAirline(candidate ids.ShortID, caller ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.runOperational(func() error {
		if err := vm.requireAuthorizedCaller(caller); err != nil {
			return err
		}
		return vm.airlines.VoteForAirline(candidate, caller)
	})
}

func (vm *VM) RegisterFlight(caller ids.ShortID, flightName string, departure uint64, tickets []string) (ids.ID, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var key ids.ID
	err := vm.runOperational(func() error {
		if err := vm.requireAuthorizedCaller(caller); err != nil {
			return err
		}
		var err error
		key, err = vm.airlines.RegisterFlight(caller, flightName, departure, tickets)
		return err
	})
	if err == nil {
		vm.metrics.IncFlightsRegistered()
	}
	return key, err
}

func (vm *VM) AddFlightTickets(caller ids.ShortID, flightName string, departure uint64, tickets []string) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.runOperational(func() error {
		if err := vm.requireAuthorizedCaller(caller); err != nil {
			return err
		}
		return vm.airlines.AddTickets(caller, flightName, departure, tickets)
	})
}

func (vm *VM) GetAirline(id ids.ShortID) (*state.Airline, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.state.GetAirline(id)
}

func (vm *VM) AirlineCounts() (exist, registered, funded uint64, err error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if exist, err = vm.state.ExistAirlineCount(); err != nil {
		return
	}
	if registered, err = vm.state.RegisteredAirlineCount(); err != nil {
		return
	}
	funded, err = vm.state.FundedAirlineCount()
	return
}

func (vm *VM) GetFlight(airline ids.ShortID, flightName string, departure uint64) (*state.Flight, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.state.GetFlight(state.FlightKey(airline, flightName, departure))
}

/*
 ******************************************************************************
 ******************************* Escrow engine ********************************
 ******************************************************************************
 */

func (vm *VM) BuyInsurance(airline ids.ShortID, flightName string, departure uint64, ticket string, caller ids.ShortID, payment uint64) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	err := vm.runOperational(func() error {
		return vm.insurance.Buy(airline, flightName, departure, ticket, caller, payment)
	})
	if err == nil {
		vm.metrics.IncInsurancesBought()
	}
	return err
}

func (vm *VM) PayInsurance(airline ids.ShortID, flightName string, departure uint64, ticket string, caller ids.ShortID) (uint64, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var amount uint64
	err := vm.runOperational(func() error {
		var err error
		amount, err = vm.insurance.Pay(airline, flightName, departure, ticket, caller)
		return err
	})
	if err == nil {
		vm.metrics.IncCreditsDrawn()
	}
	return amount, err
}

func (vm *VM) GetInsurance(airline ids.ShortID, flightName string, departure uint64, ticket string) (*state.Insurance, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.insurance.Get(airline, flightName, departure, ticket)
}

func (vm *VM) InsuranceKeysOfPassenger(passenger ids.ShortID) ([]ids.ID, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.insurance.KeysOf(passenger)
}

func (vm *VM) InsuranceKeysOfFlight(airline ids.ShortID, flightName string, departure uint64) ([]ids.ID, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.insurance.KeysOfFlight(airline, flightName, departure)
}

/*
 ******************************************************************************
 ******************************* Oracle engine ********************************
 ******************************************************************************
 */

func (vm *VM) RegisterOracle(caller ids.ShortID, fee uint64) ([]uint8, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var indexes []uint8
	err := vm.runOperational(func() error {
		var err error
		indexes, err = vm.oracles.Register(caller, fee)
		return err
	})
	if err == nil {
		vm.metrics.IncOraclesRegistered()
	}
	return indexes, err
}

func (vm *VM) OracleIndexes(caller ids.ShortID) ([]uint8, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.oracles.Indexes(caller)
}

func (vm *VM) FetchFlightStatus(airline ids.ShortID, flightName string, departure uint64, caller ids.ShortID) (uint8, uint64, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var (
		index     uint8
		timestamp uint64
	)
	err := vm.runOperational(func() error {
		var err error
		index, timestamp, err = vm.oracles.FetchFlightStatus(airline, flightName, departure, caller)
		return err
	})
	return index, timestamp, err
}

func (vm *VM) SubmitOracleResponse(index uint8, airline ids.ShortID, flightName string, departure uint64, code status.Code, caller ids.ShortID) (bool, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var finalized bool
	err := vm.runOperational(func() error {
		var err error
		finalized, err = vm.oracles.SubmitResponse(index, airline, flightName, departure, code, caller)
		return err
	})
	if err == nil {
		vm.metrics.IncOracleResponses()
		if finalized {
			vm.metrics.IncFlightsFinalized()
		}
	}
	return finalized, err
}

/*
 ******************************************************************************
 **************************** Operational surface *****************************
 ******************************************************************************
 */

func (vm *VM) IsOperational() (bool, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.state.Operational()
}

// SetOperatingStatus toggles the operational flag. Owner-only, and
// deliberately exempt from the operational guard so a paused contract
// can be resumed.
func (vm *VM) SetOperatingStatus(operational bool, caller ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.run(func() error {
		if err := vm.requireOwner(caller); err != nil {
			return err
		}
		return vm.state.SetOperational(operational)
	})
}

// AuthorizeCaller approves a principal for privileged registry
// operations. Owner-only.
func (vm *VM) AuthorizeCaller(principal ids.ShortID, caller ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	return vm.run(func() error {
		if err := vm.requireOwner(caller); err != nil {
			return err
		}
		return vm.state.Authorize(principal)
	})
}

func (vm *VM) IsCallerAuthorized(principal ids.ShortID) (bool, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.state.IsAuthorized(principal)
}

func (vm *VM) requireOwner(caller ids.ShortID) error {
	owner, err := vm.state.Owner()
	if err != nil {
		return err
	}
	if caller != owner {
		return ErrOwnerOnly
	}
	return nil
}

// requireAuthorizedCaller gates registry writes to the approved caller
// set. The owner is always approved; everyone else must have been
// approved through AuthorizeCaller.
func (vm *VM) requireAuthorizedCaller(caller ids.ShortID) error {
	owner, err := vm.state.Owner()
	if err != nil {
		return err
	}
	if caller == owner {
		return nil
	}
	authorized, err := vm.state.IsAuthorized(caller)
	if err != nil {
		return err
	}
	if !authorized {
		return fmt.Errorf("%w: %s", ErrCallerNotAuthorized, caller)
	}
	return nil
}

// runOperational runs op under the operational guard, committing on
// success and aborting on any failure.
func (vm *VM) runOperational(op func() error) error {
	return vm.run(func() error {
		operational, err := vm.state.Operational()
		if err != nil {
			return err
		}
		if !operational {
			return ErrNotOperational
		}
		return op()
	})
}

func (vm *VM) run(op func() error) error {
	if err := op(); err != nil {
		vm.state.Abort()
		vm.emitter.discard()
		return err
	}
	if err := vm.state.Commit(); err != nil {
		vm.state.Abort()
		vm.emitter.discard()
		return err
	}
	vm.emitter.flush()
	return nil
}

// pubsubEmitter buffers engine events until the operation that emitted
// them commits. Subscribers never observe events for aborted state.
type pubsubEmitter struct {
	server  *pubsub.Server
	pending []events.Event
}

func (p *pubsubEmitter) Emit(event events.Event) {
	p.pending = append(p.pending, event)
}

func (p *pubsubEmitter) flush() {
	for _, event := range p.pending {
		p.server.Publish(events.NewPubSubFilterer(event))
	}
	p.pending = nil
}

func (p *pubsubEmitter) discard() {
	p.pending = nil
}
