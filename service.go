// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"net/http"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/status"

	avajson "github.com/luxfi/surety/utils/json"
)

// Service defines the API calls that can be made to the surety
// contract surface. Caller identity is a substrate-authenticated
// principal passed explicitly on each call.
type Service struct {
	vm *VM
}

/*
 ******************************************************************************
 ********************************** Airlines **********************************
 ******************************************************************************
 */

type RegisterAirlineArgs struct {
	Candidate string `json:"candidate"`
	Name      string `json:"name"`
	Caller    string `json:"caller"`
}

func (s *Service) RegisterAirline(_ *http.Request, args *RegisterAirlineArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "registerAirline",
	)

	candidate, err := ids.ShortFromString(args.Candidate)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.RegisterAirline(candidate, args.Name, caller)
}

type FundAirlineArgs struct {
	Airline string         `json:"airline"`
	Caller  string         `json:"caller"`
	Amount  avajson.Uint64 `json:"amount"`
}

func (s *Service) FundAirline(_ *http.Request, args *FundAirlineArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "fundAirline",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.FundAirline(airline, caller, uint64(args.Amount))
}

type VoteForAirlineArgs struct {
	Candidate string `json:"candidate"`
	Caller    string `json:"caller"`
}

func (s *Service) VoteForAirline(_ *http.Request, args *VoteForAirlineArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "voteForAirline",
	)

	candidate, err := ids.ShortFromString(args.Candidate)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.VoteForAirline(candidate, caller)
}

type GetAirlineArgs struct {
	Airline string `json:"airline"`
}

type GetAirlineReply struct {
	Exists     bool           `json:"exists"`
	Name       string         `json:"name"`
	Registered bool           `json:"registered"`
	Funded     bool           `json:"funded"`
	Votes      avajson.Uint64 `json:"votes"`
}

func (s *Service) GetAirline(_ *http.Request, args *GetAirlineArgs, reply *GetAirlineReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getAirline",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	record, err := s.vm.GetAirline(airline)
	if err == database.ErrNotFound {
		return nil
	} else if err != nil {
		return err
	}
	reply.Exists = true
	reply.Name = record.Name
	reply.Registered = record.Registered
	reply.Funded = record.Funded
	reply.Votes = avajson.Uint64(record.VoteCount)
	return nil
}

type GetAirlineCountsReply struct {
	Exist      avajson.Uint64 `json:"exist"`
	Registered avajson.Uint64 `json:"registered"`
	Funded     avajson.Uint64 `json:"funded"`
}

func (s *Service) GetAirlineCounts(_ *http.Request, _ *struct{}, reply *GetAirlineCountsReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getAirlineCounts",
	)

	exist, registered, funded, err := s.vm.AirlineCounts()
	if err != nil {
		return err
	}
	reply.Exist = avajson.Uint64(exist)
	reply.Registered = avajson.Uint64(registered)
	reply.Funded = avajson.Uint64(funded)
	return nil
}

/*
 ******************************************************************************
 *********************************** Flights **********************************
 ******************************************************************************
 */

type RegisterFlightArgs struct {
	Caller    string         `json:"caller"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Tickets   []string       `json:"tickets"`
}

type RegisterFlightReply struct {
	FlightKey ids.ID `json:"flightKey"`
}

func (s *Service) RegisterFlight(_ *http.Request, args *RegisterFlightArgs, reply *RegisterFlightReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "registerFlight",
	)

	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	key, err := s.vm.RegisterFlight(caller, args.Flight, uint64(args.Departure), args.Tickets)
	if err != nil {
		return err
	}
	reply.FlightKey = key
	return nil
}

type AddFlightTicketsArgs struct {
	Caller    string         `json:"caller"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Tickets   []string       `json:"tickets"`
}

func (s *Service) AddFlightTickets(_ *http.Request, args *AddFlightTicketsArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "addFlightTickets",
	)

	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.AddFlightTickets(caller, args.Flight, uint64(args.Departure), args.Tickets)
}

type GetFlightArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
}

type GetFlightReply struct {
	Exists     bool           `json:"exists"`
	StatusCode avajson.Uint32 `json:"statusCode"`
	Status     string         `json:"status"`
}

func (s *Service) GetFlight(_ *http.Request, args *GetFlightArgs, reply *GetFlightReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getFlight",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	flight, err := s.vm.GetFlight(airline, args.Flight, uint64(args.Departure))
	if err == database.ErrNotFound {
		return nil
	} else if err != nil {
		return err
	}
	reply.Exists = true
	reply.StatusCode = avajson.Uint32(flight.Status)
	reply.Status = flight.Status.String()
	return nil
}

/*
 ******************************************************************************
 ********************************** Insurance *********************************
 ******************************************************************************
 */

type BuyInsuranceArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Ticket    string         `json:"ticket"`
	Caller    string         `json:"caller"`
	Amount    avajson.Uint64 `json:"amount"`
}

func (s *Service) BuyInsurance(_ *http.Request, args *BuyInsuranceArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "buyInsurance",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.BuyInsurance(airline, args.Flight, uint64(args.Departure), args.Ticket, caller, uint64(args.Amount))
}

type GetInsuranceArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Ticket    string         `json:"ticket"`
}

type GetInsuranceReply struct {
	Buyer     string         `json:"buyer"`
	State     string         `json:"state"`
	PaidValue avajson.Uint64 `json:"paidValue"`
	Credit    avajson.Uint64 `json:"credit"`
	Paid      bool           `json:"paid"`
}

func (s *Service) GetInsurance(_ *http.Request, args *GetInsuranceArgs, reply *GetInsuranceReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getInsurance",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	insurance, err := s.vm.GetInsurance(airline, args.Flight, uint64(args.Departure), args.Ticket)
	if err != nil {
		return err
	}
	if insurance.Buyer != ids.ShortEmpty {
		reply.Buyer = insurance.Buyer.String()
	}
	reply.State = insurance.State.String()
	reply.PaidValue = avajson.Uint64(insurance.PaidValue)
	reply.Credit = avajson.Uint64(insurance.Credit)
	reply.Paid = insurance.Paid
	return nil
}

type GetInsuranceKeysOfPassengerArgs struct {
	Passenger string `json:"passenger"`
}

type GetInsuranceKeysOfPassengerReply struct {
	Keys []ids.ID `json:"keys"`
}

func (s *Service) GetInsuranceKeysOfPassenger(_ *http.Request, args *GetInsuranceKeysOfPassengerArgs, reply *GetInsuranceKeysOfPassengerReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getInsuranceKeysOfPassenger",
	)

	passenger, err := ids.ShortFromString(args.Passenger)
	if err != nil {
		return err
	}
	reply.Keys, err = s.vm.InsuranceKeysOfPassenger(passenger)
	return err
}

type GetInsuranceKeysOfFlightArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
}

type GetInsuranceKeysOfFlightReply struct {
	Keys []ids.ID `json:"keys"`
}

func (s *Service) GetInsuranceKeysOfFlight(_ *http.Request, args *GetInsuranceKeysOfFlightArgs, reply *GetInsuranceKeysOfFlightReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getInsuranceKeysOfFlight",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	reply.Keys, err = s.vm.InsuranceKeysOfFlight(airline, args.Flight, uint64(args.Departure))
	return err
}

type PayInsuranceArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Ticket    string         `json:"ticket"`
	Caller    string         `json:"caller"`
}

type PayInsuranceReply struct {
	Amount avajson.Uint64 `json:"amount"`
}

func (s *Service) PayInsurance(_ *http.Request, args *PayInsuranceArgs, reply *PayInsuranceReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "payInsurance",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	amount, err := s.vm.PayInsurance(airline, args.Flight, uint64(args.Departure), args.Ticket, caller)
	if err != nil {
		return err
	}
	reply.Amount = avajson.Uint64(amount)
	return nil
}

/*
 ******************************************************************************
 *********************************** Oracles **********************************
 ******************************************************************************
 */

type RegisterOracleArgs struct {
	Caller string         `json:"caller"`
	Fee    avajson.Uint64 `json:"fee"`
}

type RegisterOracleReply struct {
	Indexes []avajson.Uint32 `json:"indexes"`
}

func (s *Service) RegisterOracle(_ *http.Request, args *RegisterOracleArgs, reply *RegisterOracleReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "registerOracle",
	)

	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	indexes, err := s.vm.RegisterOracle(caller, uint64(args.Fee))
	if err != nil {
		return err
	}
	reply.Indexes = toJSONIndexes(indexes)
	return nil
}

type GetMyIndexesArgs struct {
	Caller string `json:"caller"`
}

type GetMyIndexesReply struct {
	Indexes []avajson.Uint32 `json:"indexes"`
}

func (s *Service) GetMyIndexes(_ *http.Request, args *GetMyIndexesArgs, reply *GetMyIndexesReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "getMyIndexes",
	)

	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	indexes, err := s.vm.OracleIndexes(caller)
	if err != nil {
		return err
	}
	reply.Indexes = toJSONIndexes(indexes)
	return nil
}

type FetchFlightStatusArgs struct {
	Airline   string         `json:"airline"`
	Flight    string         `json:"flight"`
	Departure avajson.Uint64 `json:"departure"`
	Caller    string         `json:"caller"`
}

type FetchFlightStatusReply struct {
	Index     avajson.Uint32 `json:"index"`
	Timestamp avajson.Uint64 `json:"timestamp"`
}

func (s *Service) FetchFlightStatus(_ *http.Request, args *FetchFlightStatusArgs, reply *FetchFlightStatusReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "fetchFlightStatus",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	index, timestamp, err := s.vm.FetchFlightStatus(airline, args.Flight, uint64(args.Departure), caller)
	if err != nil {
		return err
	}
	reply.Index = avajson.Uint32(index)
	reply.Timestamp = avajson.Uint64(timestamp)
	return nil
}

type SubmitOracleResponseArgs struct {
	Index      avajson.Uint32 `json:"index"`
	Airline    string         `json:"airline"`
	Flight     string         `json:"flight"`
	Departure  avajson.Uint64 `json:"departure"`
	StatusCode avajson.Uint32 `json:"statusCode"`
	Caller     string         `json:"caller"`
}

type SubmitOracleResponseReply struct {
	Finalized bool `json:"finalized"`
}

func (s *Service) SubmitOracleResponse(_ *http.Request, args *SubmitOracleResponseArgs, reply *SubmitOracleResponseReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "submitOracleResponse",
	)

	airline, err := ids.ShortFromString(args.Airline)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	reply.Finalized, err = s.vm.SubmitOracleResponse(
		uint8(args.Index),
		airline,
		args.Flight,
		uint64(args.Departure),
		status.Code(args.StatusCode),
		caller,
	)
	return err
}

/*
 ******************************************************************************
 ********************************* Operational ********************************
 ******************************************************************************
 */

type IsOperationalReply struct {
	Operational bool `json:"operational"`
}

func (s *Service) IsOperational(_ *http.Request, _ *struct{}, reply *IsOperationalReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "isOperational",
	)

	operational, err := s.vm.IsOperational()
	reply.Operational = operational
	return err
}

type SetOperatingStatusArgs struct {
	Operational bool   `json:"operational"`
	Caller      string `json:"caller"`
}

func (s *Service) SetOperatingStatus(_ *http.Request, args *SetOperatingStatusArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "setOperatingStatus",
	)

	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.SetOperatingStatus(args.Operational, caller)
}

type AuthorizeCallerArgs struct {
	Principal string `json:"principal"`
	Caller    string `json:"caller"`
}

func (s *Service) AuthorizeCaller(_ *http.Request, args *AuthorizeCallerArgs, _ *struct{}) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "authorizeCaller",
	)

	principal, err := ids.ShortFromString(args.Principal)
	if err != nil {
		return err
	}
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return err
	}
	return s.vm.AuthorizeCaller(principal, caller)
}

type IsCallerAuthorizedArgs struct {
	Principal string `json:"principal"`
}

type IsCallerAuthorizedReply struct {
	Authorized bool `json:"authorized"`
}

func (s *Service) IsCallerAuthorized(_ *http.Request, args *IsCallerAuthorizedArgs, reply *IsCallerAuthorizedReply) error {
	s.vm.log.Debug("API called",
		"service", "surety",
		"method", "isCallerAuthorized",
	)

	principal, err := ids.ShortFromString(args.Principal)
	if err != nil {
		return err
	}
	reply.Authorized, err = s.vm.IsCallerAuthorized(principal)
	return err
}

func toJSONIndexes(indexes []uint8) []avajson.Uint32 {
	out := make([]avajson.Uint32, len(indexes))
	for i, idx := range indexes {
		out[i] = avajson.Uint32(idx)
	}
	return out
}
