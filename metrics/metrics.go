// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"errors"

	"github.com/luxfi/metric"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	metric.APIInterceptor

	IncAirlinesRegistered()
	IncAirlinesFunded()
	IncFlightsRegistered()
	IncInsurancesBought()
	IncOraclesRegistered()
	IncOracleResponses()
	IncFlightsFinalized()
	IncCreditsDrawn()
}

type metricsImpl struct {
	numAirlinesRegistered,
	numAirlinesFunded,
	numFlightsRegistered,
	numInsurancesBought,
	numOraclesRegistered,
	numOracleResponses,
	numFlightsFinalized,
	numCreditsDrawn metric.Counter

	metric.APIInterceptor
}

func (m *metricsImpl) IncAirlinesRegistered() { m.numAirlinesRegistered.Inc() }
func (m *metricsImpl) IncAirlinesFunded()     { m.numAirlinesFunded.Inc() }
func (m *metricsImpl) IncFlightsRegistered()  { m.numFlightsRegistered.Inc() }
func (m *metricsImpl) IncInsurancesBought()   { m.numInsurancesBought.Inc() }
func (m *metricsImpl) IncOraclesRegistered()  { m.numOraclesRegistered.Inc() }
func (m *metricsImpl) IncOracleResponses()    { m.numOracleResponses.Inc() }
func (m *metricsImpl) IncFlightsFinalized()   { m.numFlightsFinalized.Inc() }
func (m *metricsImpl) IncCreditsDrawn()       { m.numCreditsDrawn.Inc() }

func New(registerer metric.Registerer) (Metrics, error) {
	registry, ok := registerer.(metric.Registry)
	if !ok {
		return nil, errors.New("registerer must implement metric.Registry")
	}

	m := &metricsImpl{}
	m.numAirlinesRegistered = metric.NewCounter(metric.CounterOpts{
		Name: "airlines_registered",
		Help: "Number of airlines admitted to the federation",
	})
	m.numAirlinesFunded = metric.NewCounter(metric.CounterOpts{
		Name: "airlines_funded",
		Help: "Number of airlines that deposited their stake",
	})
	m.numFlightsRegistered = metric.NewCounter(metric.CounterOpts{
		Name: "flights_registered",
		Help: "Number of flights registered",
	})
	m.numInsurancesBought = metric.NewCounter(metric.CounterOpts{
		Name: "insurances_bought",
		Help: "Number of ticket policies purchased",
	})
	m.numOraclesRegistered = metric.NewCounter(metric.CounterOpts{
		Name: "oracles_registered",
		Help: "Number of oracles registered",
	})
	m.numOracleResponses = metric.NewCounter(metric.CounterOpts{
		Name: "oracle_responses",
		Help: "Number of oracle responses accepted",
	})
	m.numFlightsFinalized = metric.NewCounter(metric.CounterOpts{
		Name: "flights_finalized",
		Help: "Number of flights whose status reached quorum",
	})
	m.numCreditsDrawn = metric.NewCounter(metric.CounterOpts{
		Name: "credits_drawn",
		Help: "Number of withdrawals of credited funds",
	})

	apiRequestMetric, err := metric.NewAPIInterceptor(registry)
	m.APIInterceptor = apiRequestMetric
	return m, err
}
