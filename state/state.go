// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state owns every persistent record of the surety engines:
// the airline registry, flights and their ticket whitelists, ticket
// policies, oracles and status-check requests. All reads and writes go
// through a versioned layer; an operation either commits in full or is
// aborted with no visible effect.
package state

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
)

var (
	airlinePrefix         = []byte("airline")
	votePrefix            = []byte("vote")
	authorizedPrefix      = []byte("authorized")
	flightPrefix          = []byte("flight")
	ticketPrefix          = []byte("ticket")
	insurancePrefix       = []byte("insurance")
	insuranceFlightPrefix = []byte("insuranceFlight")
	insuranceOwnerPrefix  = []byte("insuranceOwner")
	oraclePrefix          = []byte("oracle")
	requestPrefix         = []byte("request")
	responsePrefix        = []byte("response")
	responseCountPrefix   = []byte("responseCount")
	singletonPrefix       = []byte("singleton")

	operationalKey     = []byte("operational")
	ownerKey           = []byte("owner")
	registeredCountKey = []byte("registeredAirlines")
	fundedCountKey     = []byte("fundedAirlines")
	existCountKey      = []byte("existAirlines")
	nonceKey           = []byte("entropyNonce")
)

// State is the registry and record store shared by the three engines.
// Mutations are staged on a version layer; the caller of an engine
// operation decides between Commit and Abort.
type State interface {
	// Airlines
	GetAirline(ids.ShortID) (*Airline, error)
	PutAirline(*Airline) error
	RegisteredAirlineCount() (uint64, error)
	SetRegisteredAirlineCount(uint64) error
	FundedAirlineCount() (uint64, error)
	SetFundedAirlineCount(uint64) error
	ExistAirlineCount() (uint64, error)
	SetExistAirlineCount(uint64) error

	// Votes
	HasVoted(candidate, voter ids.ShortID) (bool, error)
	AddVote(candidate, voter ids.ShortID) error

	// Flights
	GetFlight(ids.ID) (*Flight, error)
	PutFlight(*Flight) error
	HasTicket(flightKey ids.ID, ticket string) (bool, error)
	AddTicket(flightKey ids.ID, ticket string) error
	TicketsByFlight(flightKey ids.ID) ([]string, error)

	// Insurances
	GetInsurance(ids.ID) (*Insurance, error)
	PutInsurance(*Insurance) error
	InsuranceKeysByFlight(flightKey ids.ID) ([]ids.ID, error)
	InsuranceKeysByOwner(owner ids.ShortID) ([]ids.ID, error)

	// Oracles
	GetOracle(ids.ShortID) (*Oracle, error)
	PutOracle(*Oracle) error

	// Requests and response tallies
	GetRequest(ids.ID) (*Request, error)
	PutRequest(*Request) error
	HasResponse(reqKey ids.ID, code uint32, reporter ids.ShortID) (bool, error)
	AddResponse(reqKey ids.ID, code uint32, reporter ids.ShortID) (uint64, error)
	ResponseCount(reqKey ids.ID, code uint32) (uint64, error)

	// Entropy bookkeeping
	NextNonce() (uint64, error)

	// Operational surface
	Operational() (bool, error)
	SetOperational(bool) error
	Owner() (ids.ShortID, error)
	SetOwner(ids.ShortID) error
	IsAuthorized(ids.ShortID) (bool, error)
	Authorize(ids.ShortID) error

	// Commit writes all staged changes through to the base database.
	Commit() error
	// Abort discards all staged changes.
	Abort()
	Close() error
}

type state struct {
	baseDB database.Database
	db     *versiondb.Database

	airlineDB         database.Database
	voteDB            database.Database
	authorizedDB      database.Database
	flightDB          database.Database
	ticketDB          database.Database
	insuranceDB       database.Database
	insuranceFlightDB database.Database
	insuranceOwnerDB  database.Database
	oracleDB          database.Database
	requestDB         database.Database
	responseDB        database.Database
	responseCountDB   database.Database
	singletonDB       database.Database
}

// New returns a State backed by db.
func New(db database.Database) State {
	vdb := versiondb.New(db)
	return &state{
		baseDB:            db,
		db:                vdb,
		airlineDB:         prefixdb.New(airlinePrefix, vdb),
		voteDB:            prefixdb.New(votePrefix, vdb),
		authorizedDB:      prefixdb.New(authorizedPrefix, vdb),
		flightDB:          prefixdb.New(flightPrefix, vdb),
		ticketDB:          prefixdb.New(ticketPrefix, vdb),
		insuranceDB:       prefixdb.New(insurancePrefix, vdb),
		insuranceFlightDB: prefixdb.New(insuranceFlightPrefix, vdb),
		insuranceOwnerDB:  prefixdb.New(insuranceOwnerPrefix, vdb),
		oracleDB:          prefixdb.New(oraclePrefix, vdb),
		requestDB:         prefixdb.New(requestPrefix, vdb),
		responseDB:        prefixdb.New(responsePrefix, vdb),
		responseCountDB:   prefixdb.New(responseCountPrefix, vdb),
		singletonDB:       prefixdb.New(singletonPrefix, vdb),
	}
}

func (s *state) GetAirline(id ids.ShortID) (*Airline, error) {
	airline := &Airline{}
	if err := s.getRecord(s.airlineDB, id[:], airline); err != nil {
		return nil, err
	}
	return airline, nil
}

func (s *state) PutAirline(airline *Airline) error {
	return s.putRecord(s.airlineDB, airline.ID[:], airline)
}

func (s *state) RegisteredAirlineCount() (uint64, error) {
	return s.count(registeredCountKey)
}

func (s *state) SetRegisteredAirlineCount(n uint64) error {
	return database.PutUInt64(s.singletonDB, registeredCountKey, n)
}

func (s *state) FundedAirlineCount() (uint64, error) {
	return s.count(fundedCountKey)
}

func (s *state) SetFundedAirlineCount(n uint64) error {
	return database.PutUInt64(s.singletonDB, fundedCountKey, n)
}

func (s *state) ExistAirlineCount() (uint64, error) {
	return s.count(existCountKey)
}

func (s *state) SetExistAirlineCount(n uint64) error {
	return database.PutUInt64(s.singletonDB, existCountKey, n)
}

func (s *state) HasVoted(candidate, voter ids.ShortID) (bool, error) {
	return s.voteDB.Has(voteKey(candidate, voter))
}

func (s *state) AddVote(candidate, voter ids.ShortID) error {
	return s.voteDB.Put(voteKey(candidate, voter), nil)
}

func (s *state) GetFlight(key ids.ID) (*Flight, error) {
	flight := &Flight{}
	if err := s.getRecord(s.flightDB, key[:], flight); err != nil {
		return nil, err
	}
	return flight, nil
}

func (s *state) PutFlight(flight *Flight) error {
	key := flight.Key()
	return s.putRecord(s.flightDB, key[:], flight)
}

func (s *state) HasTicket(flightKey ids.ID, ticket string) (bool, error) {
	return s.ticketDB.Has(ticketKey(flightKey, ticket))
}

func (s *state) AddTicket(flightKey ids.ID, ticket string) error {
	return s.ticketDB.Put(ticketKey(flightKey, ticket), nil)
}

func (s *state) TicketsByFlight(flightKey ids.ID) ([]string, error) {
	iter := s.ticketDB.NewIteratorWithPrefix(flightKey[:])
	defer iter.Release()

	var tickets []string
	for iter.Next() {
		key := iter.Key()
		if len(key) <= ids.IDLen {
			continue
		}
		tickets = append(tickets, string(key[ids.IDLen:]))
	}
	return tickets, iter.Error()
}

func (s *state) GetInsurance(key ids.ID) (*Insurance, error) {
	insurance := &Insurance{}
	if err := s.getRecord(s.insuranceDB, key[:], insurance); err != nil {
		return nil, err
	}
	return insurance, nil
}

func (s *state) PutInsurance(insurance *Insurance) error {
	key := insurance.Key()
	if err := s.putRecord(s.insuranceDB, key[:], insurance); err != nil {
		return err
	}
	// Secondary indexes are write-once; rewriting them on state
	// transitions is harmless.
	if err := s.insuranceFlightDB.Put(secondaryKey(insurance.FlightKey[:], key), nil); err != nil {
		return err
	}
	return s.insuranceOwnerDB.Put(secondaryKey(insurance.Buyer[:], key), nil)
}

func (s *state) InsuranceKeysByFlight(flightKey ids.ID) ([]ids.ID, error) {
	return keysUnderPrefix(s.insuranceFlightDB, flightKey[:])
}

func (s *state) InsuranceKeysByOwner(owner ids.ShortID) ([]ids.ID, error) {
	return keysUnderPrefix(s.insuranceOwnerDB, owner[:])
}

func (s *state) GetOracle(id ids.ShortID) (*Oracle, error) {
	oracle := &Oracle{}
	if err := s.getRecord(s.oracleDB, id[:], oracle); err != nil {
		return nil, err
	}
	return oracle, nil
}

func (s *state) PutOracle(oracle *Oracle) error {
	return s.putRecord(s.oracleDB, oracle.ID[:], oracle)
}

func (s *state) GetRequest(key ids.ID) (*Request, error) {
	request := &Request{}
	if err := s.getRecord(s.requestDB, key[:], request); err != nil {
		return nil, err
	}
	return request, nil
}

func (s *state) PutRequest(request *Request) error {
	key := request.Key()
	return s.putRecord(s.requestDB, key[:], request)
}

func (s *state) HasResponse(reqKey ids.ID, code uint32, reporter ids.ShortID) (bool, error) {
	return s.responseDB.Has(responseKey(reqKey, code, reporter))
}

func (s *state) AddResponse(reqKey ids.ID, code uint32, reporter ids.ShortID) (uint64, error) {
	if err := s.responseDB.Put(responseKey(reqKey, code, reporter), nil); err != nil {
		return 0, err
	}
	count, err := s.ResponseCount(reqKey, code)
	if err != nil {
		return 0, err
	}
	count++
	return count, database.PutUInt64(s.responseCountDB, responseCountKey(reqKey, code), count)
}

func (s *state) ResponseCount(reqKey ids.ID, code uint32) (uint64, error) {
	count, err := database.GetUInt64(s.responseCountDB, responseCountKey(reqKey, code))
	if err == database.ErrNotFound {
		return 0, nil
	}
	return count, err
}

func (s *state) NextNonce() (uint64, error) {
	nonce, err := database.GetUInt64(s.singletonDB, nonceKey)
	if err == database.ErrNotFound {
		nonce = 0
	} else if err != nil {
		return 0, err
	}
	return nonce, database.PutUInt64(s.singletonDB, nonceKey, nonce+1)
}

func (s *state) Operational() (bool, error) {
	operational, err := database.GetBool(s.singletonDB, operationalKey)
	if err == database.ErrNotFound {
		return false, nil
	}
	return operational, err
}

func (s *state) SetOperational(operational bool) error {
	return database.PutBool(s.singletonDB, operationalKey, operational)
}

func (s *state) Owner() (ids.ShortID, error) {
	bytes, err := s.singletonDB.Get(ownerKey)
	if err != nil {
		return ids.ShortEmpty, err
	}
	return ids.ToShortID(bytes)
}

func (s *state) SetOwner(owner ids.ShortID) error {
	return s.singletonDB.Put(ownerKey, owner[:])
}

func (s *state) IsAuthorized(id ids.ShortID) (bool, error) {
	return s.authorizedDB.Has(id[:])
}

func (s *state) Authorize(id ids.ShortID) error {
	return s.authorizedDB.Put(id[:], nil)
}

func (s *state) Commit() error {
	return s.db.Commit()
}

func (s *state) Abort() {
	s.db.Abort()
}

func (s *state) Close() error {
	return s.db.Close()
}

func (s *state) count(key []byte) (uint64, error) {
	count, err := database.GetUInt64(s.singletonDB, key)
	if err == database.ErrNotFound {
		return 0, nil
	}
	return count, err
}

func (s *state) getRecord(db database.Database, key []byte, record interface{}) error {
	bytes, err := db.Get(key)
	if err != nil {
		return err
	}
	if _, err := Codec.Unmarshal(bytes, record); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

func (s *state) putRecord(db database.Database, key []byte, record interface{}) error {
	bytes, err := Codec.Marshal(CodecVersion, record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return db.Put(key, bytes)
}

// keysUnderPrefix collects the ids.ID suffixes of every key below the
// given prefix. Index entries are prefix||key, so the trailing IDLen
// bytes recover the record key.
func keysUnderPrefix(db database.Database, prefix []byte) ([]ids.ID, error) {
	iter := db.NewIteratorWithPrefix(prefix)
	defer iter.Release()

	var keys []ids.ID
	for iter.Next() {
		fullKey := iter.Key()
		if len(fullKey) < ids.IDLen {
			continue
		}
		key, err := ids.ToID(fullKey[len(fullKey)-ids.IDLen:])
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, iter.Error()
}
