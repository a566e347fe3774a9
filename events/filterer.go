// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"github.com/luxfi/pubsub"
)

var _ pubsub.Filterer = (*filterer)(nil)

type filterer struct {
	event Event
}

// NewPubSubFilterer wraps an event for publication. A subscriber's
// filter matches if it checks true against any involved address.
func NewPubSubFilterer(event Event) pubsub.Filterer {
	return &filterer{event: event}
}

// Apply the filter to check if the subscriber is interested in the
// wrapped event.
func (f *filterer) Filter(filters []pubsub.Filter) ([]bool, interface{}) {
	resp := make([]bool, len(filters))
	for i, filter := range filters {
		for _, addr := range f.event.Addresses() {
			if filter.Check(addr) {
				resp[i] = true
				break
			}
		}
	}
	return resp, f.event
}

// Recorder is an Emitter that captures events in order. Intended for
// tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(event Event) {
	r.Events = append(r.Events, event)
}
