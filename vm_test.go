// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/pubsub"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/airlines"
	"github.com/luxfi/surety/components/ledger"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/events"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/status"
)

type testVM struct {
	*VM
	ledger       *ledger.Memory
	owner        ids.ShortID
	firstAirline ids.ShortID
}

func newTestVM(t *testing.T) *testVM {
	t.Helper()
	require := require.New(t)

	vm := &VM{}
	lgr := ledger.NewMemory()
	owner := ids.GenerateTestShortID()
	firstAirline := ids.GenerateTestShortID()
	require.NoError(vm.Initialize(
		memdb.New(),
		nil,
		Genesis{
			Owner:            owner,
			FirstAirline:     firstAirline,
			FirstAirlineName: "Founding Air",
		},
		lgr,
		log.NoLog{},
	))
	t.Cleanup(func() {
		require.NoError(vm.Shutdown())
	})

	return &testVM{
		VM:           vm,
		ledger:       lgr,
		owner:        owner,
		firstAirline: firstAirline,
	}
}

// fundFirstAirline stakes the founding airline so it can sponsor.
func (vm *testVM) fundFirstAirline(require *require.Assertions) {
	require.NoError(vm.FundAirline(vm.firstAirline, vm.firstAirline, config.Default.AirlineFunding))
}

func TestInitializeGenesis(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	operational, err := vm.IsOperational()
	require.NoError(err)
	require.True(operational)

	airline, err := vm.GetAirline(vm.firstAirline)
	require.NoError(err)
	require.True(airline.Registered)
	require.False(airline.Funded)
	require.Equal("Founding Air", airline.Name)

	exist, registered, funded, err := vm.AirlineCounts()
	require.NoError(err)
	require.Equal(uint64(1), exist)
	require.Equal(uint64(1), registered)
	require.Zero(funded)
}

func TestCreateHandlers(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	handlers, err := vm.CreateHandlers()
	require.NoError(err)
	require.Contains(handlers, "")
	require.Contains(handlers, "/events")
}

func TestOperationalGate(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	// Only the owner may pause.
	err := vm.SetOperatingStatus(false, vm.firstAirline)
	require.ErrorIs(err, ErrOwnerOnly)

	require.NoError(vm.SetOperatingStatus(false, vm.owner))

	err = vm.RegisterAirline(ids.GenerateTestShortID(), "Paused Air", vm.firstAirline)
	require.ErrorIs(err, ErrNotOperational)

	// Resuming is exempt from the gate it controls.
	require.NoError(vm.SetOperatingStatus(true, vm.owner))
	require.NoError(vm.RegisterAirline(ids.GenerateTestShortID(), "Resumed Air", vm.firstAirline))
}

func TestAuthorizeCaller(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)

	principal := ids.GenerateTestShortID()
	authorized, err := vm.IsCallerAuthorized(principal)
	require.NoError(err)
	require.False(authorized)

	err = vm.AuthorizeCaller(principal, principal)
	require.ErrorIs(err, ErrOwnerOnly)

	require.NoError(vm.AuthorizeCaller(principal, vm.owner))
	authorized, err = vm.IsCallerAuthorized(principal)
	require.NoError(err)
	require.True(authorized)
}

func TestRegistryCallerGate(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	funding := config.Default.AirlineFunding

	// The founding airline is approved at genesis.
	candidate := ids.GenerateTestShortID()
	require.NoError(vm.RegisterAirline(candidate, "Gated Air", vm.firstAirline))

	// The candidate was admitted but its principal is not approved, so
	// every registry write it attempts is refused.
	err := vm.FundAirline(candidate, candidate, funding)
	require.ErrorIs(err, ErrCallerNotAuthorized)
	_, err = vm.RegisterFlight(candidate, "SUR 900", 1735689600, []string{"T1"})
	require.ErrorIs(err, ErrCallerNotAuthorized)

	airline, err := vm.GetAirline(candidate)
	require.NoError(err)
	require.False(airline.Funded)

	require.NoError(vm.AuthorizeCaller(candidate, vm.owner))
	require.NoError(vm.FundAirline(candidate, candidate, funding))

	// Approval gates registry writes only; buying insurance or
	// registering as an oracle needs no approval.
	_, err = vm.RegisterOracle(ids.GenerateTestShortID(), config.Default.OracleFee)
	require.NoError(err)
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	// Funding below the minimum fails and aborts.
	candidate := ids.GenerateTestShortID()
	require.NoError(vm.RegisterAirline(candidate, "Broke Air", vm.firstAirline))
	require.NoError(vm.AuthorizeCaller(candidate, vm.owner))
	err := vm.FundAirline(candidate, candidate, config.Default.AirlineFunding-1)
	require.ErrorIs(err, airlines.ErrInsufficientFunds)

	airline, err := vm.GetAirline(candidate)
	require.NoError(err)
	require.False(airline.Funded)

	_, _, funded, err := vm.AirlineCounts()
	require.NoError(err)
	require.Equal(uint64(1), funded)
}

func TestAirlineAdmissionLifecycle(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	funding := config.Default.AirlineFunding

	// Three more airlines are admitted directly, approved for registry
	// writes by the owner, and stake.
	members := []ids.ShortID{vm.firstAirline}
	for i := 0; i < 3; i++ {
		candidate := ids.GenerateTestShortID()
		require.NoError(vm.RegisterAirline(candidate, "Direct Air", vm.firstAirline))
		require.NoError(vm.AuthorizeCaller(candidate, vm.owner))
		require.NoError(vm.FundAirline(candidate, candidate, funding))
		members = append(members, candidate)
	}

	exist, registered, funded, err := vm.AirlineCounts()
	require.NoError(err)
	require.Equal(uint64(4), exist)
	require.Equal(uint64(4), registered)
	require.Equal(uint64(4), funded)

	// The fifth candidate needs votes.
	fifth := ids.GenerateTestShortID()
	require.NoError(vm.RegisterAirline(fifth, "Voted Air", vm.firstAirline))

	airline, err := vm.GetAirline(fifth)
	require.NoError(err)
	require.False(airline.Registered)

	require.NoError(vm.VoteForAirline(fifth, members[0]))
	airline, err = vm.GetAirline(fifth)
	require.NoError(err)
	require.False(airline.Registered)

	err = vm.VoteForAirline(fifth, members[0])
	require.ErrorIs(err, airlines.ErrDuplicateVote)

	// 2 of 4 funded airlines is enough (ties admit).
	require.NoError(vm.VoteForAirline(fifth, members[1]))
	airline, err = vm.GetAirline(fifth)
	require.NoError(err)
	require.True(airline.Registered)

	exist, registered, _, err = vm.AirlineCounts()
	require.NoError(err)
	require.Equal(uint64(5), exist)
	require.Equal(uint64(5), registered)
}

// registerOracles registers n fresh oracles and returns their index
// assignments.
func registerOracles(require *require.Assertions, vm *testVM, n int) map[ids.ShortID][]uint8 {
	assigned := make(map[ids.ShortID][]uint8, n)
	for i := 0; i < n; i++ {
		oracle := ids.GenerateTestShortID()
		indexes, err := vm.RegisterOracle(oracle, config.Default.OracleFee)
		require.NoError(err)
		require.Len(indexes, config.Default.IndexesPerOracle)
		assigned[oracle] = indexes
	}
	return assigned
}

func TestLateAirlinePayout(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	const (
		flightName = "SUR 001"
		departure  = uint64(1735689600)
	)
	premium := config.Default.InsuranceCap
	passenger := ids.GenerateTestShortID()

	_, err := vm.RegisterFlight(vm.firstAirline, flightName, departure, []string{"T1", "T2"})
	require.NoError(err)

	require.NoError(vm.BuyInsurance(vm.firstAirline, flightName, departure, "T1", passenger, premium))

	// Overpaying the cap is rejected.
	err = vm.BuyInsurance(vm.firstAirline, flightName, departure, "T2", passenger, premium+1)
	require.ErrorIs(err, insurance.ErrPaymentTooLarge)

	assigned := registerOracles(require, vm, 40)

	// Open status checks until at least a quorum of oracles holds the
	// requested index.
	var (
		reqIndex uint8
		holders  []ids.ShortID
	)
	for attempt := 0; attempt < 10 && len(holders) < int(config.Default.OracleQuorum); attempt++ {
		reqIndex, _, err = vm.FetchFlightStatus(vm.firstAirline, flightName, departure, passenger)
		require.NoError(err)

		holders = holders[:0]
		for oracle, indexes := range assigned {
			for _, idx := range indexes {
				if idx == reqIndex {
					holders = append(holders, oracle)
					break
				}
			}
		}
	}
	require.GreaterOrEqual(len(holders), int(config.Default.OracleQuorum))

	// Two matching reports leave the flight unsettled.
	for _, oracle := range holders[:2] {
		finalized, err := vm.SubmitOracleResponse(reqIndex, vm.firstAirline, flightName, departure, status.LateAirline, oracle)
		require.NoError(err)
		require.False(finalized)
	}

	// The third report finalizes and settles every policy.
	finalized, err := vm.SubmitOracleResponse(reqIndex, vm.firstAirline, flightName, departure, status.LateAirline, holders[2])
	require.NoError(err)
	require.True(finalized)

	flight, err := vm.GetFlight(vm.firstAirline, flightName, departure)
	require.NoError(err)
	require.Equal(status.LateAirline, flight.Status)

	// The bought policy is credited at 3/2 of the premium.
	policy, err := vm.GetInsurance(vm.firstAirline, flightName, departure, "T1")
	require.NoError(err)
	require.Equal(state.InsuranceCredited, policy.State)
	require.Equal(premium*3/2, policy.Credit)

	// The never-bought ticket expired.
	policy, err = vm.GetInsurance(vm.firstAirline, flightName, departure, "T2")
	require.NoError(err)
	require.Equal(state.InsuranceExpired, policy.State)

	// Withdrawal pays exactly once.
	amount, err := vm.PayInsurance(vm.firstAirline, flightName, departure, "T1", passenger)
	require.NoError(err)
	require.Equal(premium*3/2, amount)
	require.Equal(premium*3/2, vm.ledger.Balance(passenger))

	_, err = vm.PayInsurance(vm.firstAirline, flightName, departure, "T1", passenger)
	require.ErrorIs(err, insurance.ErrNothingToWithdraw)
	require.Equal(premium*3/2, vm.ledger.Balance(passenger))

	keys, err := vm.InsuranceKeysOfPassenger(passenger)
	require.NoError(err)
	require.Len(keys, 1)

	// Settlement materialized a record for the unbought ticket too.
	keys, err = vm.InsuranceKeysOfFlight(vm.firstAirline, flightName, departure)
	require.NoError(err)
	require.Len(keys, 2)
}

func TestBufferedEmitter(t *testing.T) {
	require := require.New(t)

	emitter := &pubsubEmitter{server: pubsub.New(log.NoLog{})}
	emitter.Emit(&events.AirlineFunded{
		Airline: ids.GenerateTestShortID(),
		Amount:  1,
	})
	require.Len(emitter.pending, 1)

	// The abort path drops buffered events unpublished.
	emitter.discard()
	require.Empty(emitter.pending)

	// The commit path publishes and clears the buffer.
	emitter.Emit(&events.AirlineFunded{
		Airline: ids.GenerateTestShortID(),
		Amount:  2,
	})
	emitter.flush()
	require.Empty(emitter.pending)
}

func TestNoPendingEventsAfterOperations(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	// Committed operations flushed their events.
	require.Empty(vm.emitter.pending)

	// A refused operation leaves nothing buffered either.
	err := vm.RegisterAirline(ids.GenerateTestShortID(), "Gated Air", ids.GenerateTestShortID())
	require.ErrorIs(err, ErrCallerNotAuthorized)
	require.Empty(vm.emitter.pending)
}

func TestOnTimeFlightExpiresPolicies(t *testing.T) {
	require := require.New(t)
	vm := newTestVM(t)
	vm.fundFirstAirline(require)

	const (
		flightName = "SUR 002"
		departure  = uint64(1735776000)
	)
	passenger := ids.GenerateTestShortID()

	_, err := vm.RegisterFlight(vm.firstAirline, flightName, departure, []string{"T1"})
	require.NoError(err)
	require.NoError(vm.BuyInsurance(vm.firstAirline, flightName, departure, "T1", passenger, 100))

	assigned := registerOracles(require, vm, 40)

	var (
		reqIndex uint8
		holders  []ids.ShortID
	)
	for attempt := 0; attempt < 10 && len(holders) < int(config.Default.OracleQuorum); attempt++ {
		reqIndex, _, err = vm.FetchFlightStatus(vm.firstAirline, flightName, departure, passenger)
		require.NoError(err)

		holders = holders[:0]
		for oracle, indexes := range assigned {
			for _, idx := range indexes {
				if idx == reqIndex {
					holders = append(holders, oracle)
					break
				}
			}
		}
	}
	require.GreaterOrEqual(len(holders), int(config.Default.OracleQuorum))

	var finalized bool
	for _, oracle := range holders[:3] {
		finalized, err = vm.SubmitOracleResponse(reqIndex, vm.firstAirline, flightName, departure, status.OnTime, oracle)
		require.NoError(err)
	}
	require.True(finalized)

	policy, err := vm.GetInsurance(vm.firstAirline, flightName, departure, "T1")
	require.NoError(err)
	require.Equal(state.InsuranceExpired, policy.State)
	require.Zero(policy.Credit)

	_, err = vm.PayInsurance(vm.firstAirline, flightName, departure, "T1", passenger)
	require.ErrorIs(err, insurance.ErrNothingToWithdraw)
	require.Zero(vm.ledger.Balance(passenger))
}
