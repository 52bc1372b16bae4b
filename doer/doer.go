// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package doer implements the uniform worker-task contract: a Doer owns
// scratch buffers for one task instance, performs its DSP kernel, and
// returns a completion event. A Doer is owned by exactly one worker
// thread — no internal locking.
package doer

import (
	"time"

	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/tag"
)

// Doer is a named unit of work with the contract Launch(Tag) -> Event.
type Doer interface {
	// Kind identifies which event kind this Doer completes.
	Kind() event.Kind
	// Launch performs the task addressed by t and returns the completion
	// event to route back to the master.
	Launch(t tag.Tag) event.Event
}

// Func adapts a plain function to the Doer interface.
type Func struct {
	EventKind event.Kind
	Run       func(t tag.Tag) event.Event
}

func (f Func) Kind() event.Kind             { return f.EventKind }
func (f Func) Launch(t tag.Tag) event.Event { return f.Run(t) }

// DurationRecorder receives the wall-clock duration of one Launch call,
// keyed by the doer kind. Implemented by stats.DurationTracker; declared locally
// to avoid every Doer implementation importing the stats package.
type DurationRecorder interface {
	Record(kind event.Kind, d time.Duration)
}

// Instrumented wraps a Doer so every Launch call's duration is reported
// to rec. If a Launch exceeds SlowThreshold, OnSlow is invoked with the
// tag and the observed duration so the caller can log it (§4.5,
// Deadlines): the scheduler does not re-prioritize by wall clock, but it
// does record and surface per-stage overruns.
type Instrumented struct {
	Doer
	Rec           DurationRecorder
	SlowThreshold time.Duration
	OnSlow        func(kind event.Kind, t tag.Tag, d time.Duration)
}

func (i Instrumented) Launch(t tag.Tag) event.Event {
	start := time.Now()
	ev := i.Doer.Launch(t)
	d := time.Since(start)
	if i.Rec != nil {
		i.Rec.Record(i.Doer.Kind(), d)
	}
	if i.SlowThreshold > 0 && d > i.SlowThreshold && i.OnSlow != nil {
		i.OnSlow(i.Doer.Kind(), t, d)
	}
	return ev
}

// Registry maps an event kind to the Doer that handles it within one
// worker thread.
type Registry struct {
	doers map[event.Kind]Doer
}

// NewRegistry builds a Registry from the given Doers. Panics if two Doers
// claim the same Kind — each worker owns exactly one Doer per task kind.
func NewRegistry(doers ...Doer) *Registry {
	r := &Registry{doers: make(map[event.Kind]Doer, len(doers))}
	for _, d := range doers {
		if _, exists := r.doers[d.Kind()]; exists {
			panic("doer: duplicate registration for kind " + d.Kind().String())
		}
		r.doers[d.Kind()] = d
	}
	return r
}

// Lookup returns the Doer registered for kind, or nil if none is.
func (r *Registry) Lookup(kind event.Kind) Doer {
	return r.doers[kind]
}

// Dispatch runs the request event through its registered Doer and returns
// the completion event. Panics if no Doer is registered for the request's
// kind — that is a configuration error caught at startup in practice.
func (r *Registry) Dispatch(req event.Event) event.Event {
	d := r.doers[req.Kind]
	if d == nil {
		panic("doer: no doer registered for kind " + req.Kind.String())
	}
	return d.Launch(req.Tag)
}
