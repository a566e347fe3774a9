// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracles

import (
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/events"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/status"
	"github.com/luxfi/surety/utils/timer/mockable"
)

const (
	testFlightName = "SUR 001"
	testDeparture  = uint64(1735689600)
)

type settlementRecorder struct {
	flightKeys []ids.ID
	codes      []status.Code
}

func (s *settlementRecorder) Settle(flightKey ids.ID, code status.Code) error {
	s.flightKeys = append(s.flightKeys, flightKey)
	s.codes = append(s.codes, code)
	return nil
}

type testEnv struct {
	engine    *Engine
	state     state.State
	recorder  *events.Recorder
	settler   *settlementRecorder
	entropy   *FixedEntropy
	airline   ids.ShortID
	flightKey ids.ID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)

	cfg := config.Default
	st := state.New(memdb.New())
	recorder := &events.Recorder{}
	settler := &settlementRecorder{}
	entropy := &FixedEntropy{
		Assigned: []uint8{1, 2, 3},
		Request:  2,
	}
	clock := &mockable.Clock{}
	clock.Set(time.Unix(1735000000, 0))

	airline := ids.GenerateTestShortID()
	flight := &state.Flight{
		Airline:   airline,
		Name:      testFlightName,
		Departure: testDeparture,
		Status:    status.Unknown,
	}
	require.NoError(st.PutFlight(flight))

	return &testEnv{
		engine:    New(&cfg, st, log.NoLog{}, recorder, entropy, clock, settler),
		state:     st,
		recorder:  recorder,
		settler:   settler,
		entropy:   entropy,
		airline:   airline,
		flightKey: flight.Key(),
	}
}

func TestRegister(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	oracle := ids.GenerateTestShortID()
	fee := config.Default.OracleFee

	_, err := env.engine.Register(oracle, fee-1)
	require.ErrorIs(err, ErrInsufficientFunds)

	indexes, err := env.engine.Register(oracle, fee)
	require.NoError(err)
	require.Equal([]uint8{1, 2, 3}, indexes)

	// The assignment is immutable and readable back.
	got, err := env.engine.Indexes(oracle)
	require.NoError(err)
	require.Equal(indexes, got)

	_, err = env.engine.Register(oracle, fee)
	require.ErrorIs(err, ErrAlreadyRegistered)

	_, err = env.engine.Indexes(ids.GenerateTestShortID())
	require.ErrorIs(err, ErrNotRegistered)
}

func TestFetchFlightStatus(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	caller := ids.GenerateTestShortID()

	_, _, err := env.engine.FetchFlightStatus(env.airline, "NO SUCH", testDeparture, caller)
	require.ErrorIs(err, ErrUnknownFlight)

	index, timestamp, err := env.engine.FetchFlightStatus(env.airline, testFlightName, testDeparture, caller)
	require.NoError(err)
	require.Equal(uint8(2), index)
	require.Equal(uint64(1735000000), timestamp)

	request, err := env.state.GetRequest(state.RequestKey(index, env.flightKey))
	require.NoError(err)
	require.True(request.Open)
	require.Equal(timestamp, request.RequestedAt)

	last := env.recorder.Events[len(env.recorder.Events)-1]
	requestEvent, ok := last.(*events.OracleRequest)
	require.True(ok)
	require.Equal(uint8(2), requestEvent.Index)
}

func TestSubmitResponseValidation(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	fee := config.Default.OracleFee

	oracle := ids.GenerateTestShortID()
	_, err := env.engine.Register(oracle, fee)
	require.NoError(err)

	_, _, err = env.engine.FetchFlightStatus(env.airline, testFlightName, testDeparture, ids.GenerateTestShortID())
	require.NoError(err)

	// Garbage and Unknown are both rejected.
	_, err = env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.Code(17), oracle)
	require.ErrorIs(err, ErrInvalidStatus)
	_, err = env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.Unknown, oracle)
	require.ErrorIs(err, ErrInvalidStatus)

	_, err = env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.OnTime, ids.GenerateTestShortID())
	require.ErrorIs(err, ErrNotRegistered)

	// Index 7 is not among the oracle's assignment.
	_, err = env.engine.SubmitResponse(7, env.airline, testFlightName, testDeparture, status.OnTime, oracle)
	require.ErrorIs(err, ErrUnauthorized)

	// Index 1 is assigned but has no open request.
	_, err = env.engine.SubmitResponse(1, env.airline, testFlightName, testDeparture, status.OnTime, oracle)
	require.ErrorIs(err, ErrRequestMismatch)
}

func TestQuorumFinalizes(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	fee := config.Default.OracleFee

	oracles := make([]ids.ShortID, 4)
	for i := range oracles {
		oracles[i] = ids.GenerateTestShortID()
		_, err := env.engine.Register(oracles[i], fee)
		require.NoError(err)
	}

	_, _, err := env.engine.FetchFlightStatus(env.airline, testFlightName, testDeparture, ids.GenerateTestShortID())
	require.NoError(err)

	// Two matching reports are below quorum.
	for _, oracle := range oracles[:2] {
		finalized, err := env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.LateAirline, oracle)
		require.NoError(err)
		require.False(finalized)
	}
	require.Empty(env.settler.codes)

	flight, err := env.state.GetFlight(env.flightKey)
	require.NoError(err)
	require.Equal(status.Unknown, flight.Status)

	// The third matching report reaches quorum and settles.
	finalized, err := env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.LateAirline, oracles[2])
	require.NoError(err)
	require.True(finalized)

	require.Equal([]ids.ID{env.flightKey}, env.settler.flightKeys)
	require.Equal([]status.Code{status.LateAirline}, env.settler.codes)

	flight, err = env.state.GetFlight(env.flightKey)
	require.NoError(err)
	require.Equal(status.LateAirline, flight.Status)

	request, err := env.state.GetRequest(state.RequestKey(2, env.flightKey))
	require.NoError(err)
	require.False(request.Open)

	// A late straggler is recorded but changes nothing.
	finalized, err = env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.OnTime, oracles[3])
	require.NoError(err)
	require.False(finalized)
	require.Len(env.settler.codes, 1)

	flight, err = env.state.GetFlight(env.flightKey)
	require.NoError(err)
	require.Equal(status.LateAirline, flight.Status)

	last := env.recorder.Events[len(env.recorder.Events)-1]
	report, ok := last.(*events.OracleReport)
	require.True(ok)
	require.False(report.Counted)
}

func TestDuplicateResponseNotCounted(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	fee := config.Default.OracleFee

	oracle := ids.GenerateTestShortID()
	_, err := env.engine.Register(oracle, fee)
	require.NoError(err)

	_, _, err = env.engine.FetchFlightStatus(env.airline, testFlightName, testDeparture, ids.GenerateTestShortID())
	require.NoError(err)

	finalized, err := env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.LateAirline, oracle)
	require.NoError(err)
	require.False(finalized)

	// Re-submitting the same report neither counts again nor fails.
	finalized, err = env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.LateAirline, oracle)
	require.NoError(err)
	require.False(finalized)

	count, err := env.state.ResponseCount(state.RequestKey(2, env.flightKey), uint32(status.LateAirline))
	require.NoError(err)
	require.Equal(uint64(1), count)
}

func TestMixedCodesTallySeparately(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	fee := config.Default.OracleFee

	oracles := make([]ids.ShortID, 4)
	for i := range oracles {
		oracles[i] = ids.GenerateTestShortID()
		_, err := env.engine.Register(oracles[i], fee)
		require.NoError(err)
	}

	_, _, err := env.engine.FetchFlightStatus(env.airline, testFlightName, testDeparture, ids.GenerateTestShortID())
	require.NoError(err)

	// 2 LateAirline + 2 OnTime: no code reaches quorum of 3.
	for i, code := range []status.Code{status.LateAirline, status.OnTime, status.LateAirline, status.OnTime} {
		finalized, err := env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, code, oracles[i])
		require.NoError(err)
		require.False(finalized)
	}
	require.Empty(env.settler.codes)

	request, err := env.state.GetRequest(state.RequestKey(2, env.flightKey))
	require.NoError(err)
	require.True(request.Open)

	// A fifth oracle tips OnTime over quorum; first-to-quorum wins.
	fifth := ids.GenerateTestShortID()
	_, err = env.engine.Register(fifth, fee)
	require.NoError(err)

	finalized, err := env.engine.SubmitResponse(2, env.airline, testFlightName, testDeparture, status.OnTime, fifth)
	require.NoError(err)
	require.True(finalized)
	require.Equal([]status.Code{status.OnTime}, env.settler.codes)
}

func TestHashEntropyBounds(t *testing.T) {
	require := require.New(t)

	clock := &mockable.Clock{}
	clock.Set(time.Unix(1735000000, 0))
	entropy := NewEntropy(clock)

	caller := ids.GenerateTestShortID()
	indexes := entropy.Indexes(caller, 0, 3, 10)
	require.Len(indexes, 3)
	seen := make(map[uint8]struct{})
	for _, idx := range indexes {
		require.Less(idx, uint8(10))
		_, ok := seen[idx]
		require.False(ok)
		seen[idx] = struct{}{}
	}

	flightKey := ids.GenerateTestID()
	idx := entropy.RequestIndex(caller, 1, flightKey, 10)
	require.Less(idx, uint8(10))

	// Same inputs, same draw.
	require.Equal(idx, entropy.RequestIndex(caller, 1, flightKey, 10))

	// A range exactly as large as the assignment still terminates,
	// yielding a permutation of the whole range.
	indexes = entropy.Indexes(caller, 2, 3, 3)
	require.ElementsMatch([]uint8{0, 1, 2}, indexes)
}
