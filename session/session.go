// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session owns the lifecycle of one scheduler instance: the
// shared counters, the queue fabric connecting the master to its
// workers, the NUMA topology each worker is pinned against, and the
// startup/shutdown sequencing that brings them up and tears them down
// in order.
package session

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/radiosched/config"
	"code.hybscloud.com/radiosched/counters"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/lfq"
	"code.hybscloud.com/radiosched/obs"
)

// Queues is the full set of lock-free queues wiring the master to its
// worker pool, per the scheduler's four concrete wirings: one SPSC
// request queue per worker, one shared MPSC completion queue, an SPMC
// pool for round-robin demul fan-out, and an MPMC pool for TX dispatch
// from the master (on each IFFT completion) to every radio front end.
type Queues struct {
	Requests   []*lfq.SPSC[event.Event]
	Completion lfq.Queue[event.Event]
	Demul      lfq.Queue[event.Event]
	TXDispatch lfq.Queue[event.Event]
}

// NewQueues builds the queue fabric for numWorkers workers, each sized
// capacity (rounded to a power of two per lfq.New). compact selects the
// CAS-based algorithm variant for every MPSC/SPMC/MPMC wiring (per-worker
// request queues stay SPSC regardless, since lfq.Builder.Compact has no
// effect there).
func NewQueues(numWorkers, capacity int, compact bool) *Queues {
	completion := lfq.New(capacity).SingleConsumer()
	demul := lfq.New(capacity).SingleProducer()
	txDispatch := lfq.New(capacity)
	if compact {
		completion = completion.Compact()
		demul = demul.Compact()
		txDispatch = txDispatch.Compact()
	}

	q := &Queues{
		Requests:   make([]*lfq.SPSC[event.Event], numWorkers),
		Completion: lfq.BuildMPSC[event.Event](completion),
		Demul:      lfq.BuildSPMC[event.Event](demul),
		TXDispatch: lfq.BuildMPMC[event.Event](txDispatch),
	}
	for i := range q.Requests {
		q.Requests[i] = lfq.BuildSPSC[event.Event](lfq.New(capacity).SingleProducer().SingleConsumer())
	}
	return q
}

// Drain signals every Drainer-capable queue that producers are done, so
// shutdown can consume whatever remains without threshold blocking. See
// lfq.Drainer: SPSC request queues have no threshold and are excluded.
func (q *Queues) Drain() {
	for _, d := range []lfq.Queue[event.Event]{q.Completion, q.Demul, q.TXDispatch} {
		if dr, ok := d.(lfq.Drainer); ok {
			dr.Drain()
		}
	}
}

// State is the shared, process-wide state for one scheduler instance. It
// is constructed once at startup and handed by reference to the
// scheduler, the worker pool, and the radio front end.
type State struct {
	Config   config.Config
	Counters *counters.SharedCounters
	Queues   *Queues
	Log      *obs.Logger

	// running gates RX admission and worker loops. Cleared by Shutdown to
	// begin an orderly stop; workers observe it between iterations
	// rather than being killed out from under an in-flight dispatch.
	running atomix.Bool

	// admitRX is the master's backpressure signal (§4.5): cleared when
	// latest_frame_-cur_frame_ >= W-1 so the front end can choose to
	// stop admitting new frames while still servicing TX. AddPacket's
	// own overrun check is the hard enforcement; this flag is the
	// advisory signal that lets a front end avoid needless work.
	admitRX atomix.Bool

	// started/stopped are startup/shutdown barriers: Start blocks callers
	// until every registered component has signaled ready; Shutdown
	// blocks until every component has signaled stopped.
	startWG sync.WaitGroup
	stopWG  sync.WaitGroup
}

// New constructs a State from cfg, ready for components to register
// against via StartBarrier/StopBarrier before calling Start.
func New(cfg config.Config, log *obs.Logger) *State {
	s := &State{
		Config:   cfg,
		Counters: counters.New(cfg.Counters()),
		Queues:   NewQueues(len(cfg.TotalCPUs()), 1024, cfg.CompactQueues),
		Log:      log,
	}
	s.running.StoreRelease(true)
	s.admitRX.StoreRelease(true)
	return s
}

// Running reports whether the session is still accepting new work.
func (s *State) Running() bool {
	return s.running.LoadAcquire()
}

// AdmitRX reports whether the front end should keep pushing newly
// received symbols into the pipeline. The master clears this when the
// outstanding-frame window is nearly full and sets it again once the
// window drains, so a front end under sustained backpressure can choose
// to stop doing receive-side work rather than relying solely on
// AddPacket's overrun rejection.
func (s *State) AdmitRX() bool {
	return s.admitRX.LoadAcquire()
}

// SetAdmitRX updates the backpressure signal. Called by the master only.
func (s *State) SetAdmitRX(v bool) {
	s.admitRX.StoreRelease(v)
}

// StartBarrier registers one more component that must call done before
// Start returns. Call once per worker/radio-thread/scheduler goroutine
// before launching it.
func (s *State) StartBarrier() (done func()) {
	s.startWG.Add(1)
	return s.startWG.Done
}

// Start blocks until every component registered via StartBarrier has
// signaled ready.
func (s *State) Start() {
	s.startWG.Wait()
}

// StopBarrier registers one more component that must call done before
// Shutdown returns. Call once per worker/radio-thread/scheduler goroutine
// before launching it, mirroring StartBarrier.
func (s *State) StopBarrier() (done func()) {
	s.stopWG.Add(1)
	return s.stopWG.Done
}

// Stop clears running and drains the queue fabric without waiting for
// components to exit. It is safe to call from any goroutine, including
// one of the components itself (e.g. the radio front end reacting to a
// beacon-loss fatal condition) — unlike Shutdown, it never blocks, so it
// cannot deadlock a caller that still owes the stop barrier a done call.
func (s *State) Stop() {
	s.running.StoreRelease(false)
	s.Queues.Drain()
}

// Shutdown begins an orderly stop: it clears running (so radio and
// worker loops stop admitting new work on their next check), drains the
// queue fabric so consumers can finish what's in flight, then blocks
// until every component registered via StopBarrier has exited.
func (s *State) Shutdown() {
	s.Stop()
	s.stopWG.Wait()
}
