// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package worker runs the per-core dispatch loop: dequeue a request from
// a dedicated SPSC queue, dispatch it through a doer.Registry, and push
// the completion onto the shared MPSC completion queue. Each Worker owns
// exactly one OS thread, optionally pinned to a specific CPU.
package worker

import (
	"runtime"

	"code.hybscloud.com/radiosched/counters"
	"code.hybscloud.com/radiosched/doer"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/lfq"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/unix"
)

// enqueueRetryBudget bounds how many times pushCompletion retries a full
// completion queue before treating it as a hard failure; see the matching
// constant in scheduler.Master.
const enqueueRetryBudget = 1 << 20

// Worker is one dispatch loop, bound to a single request queue and the
// doer registry that knows how to run its events.
type Worker struct {
	ID       int
	CPU      int // -1 means unpinned
	Requests *lfq.SPSC[event.Event]
	Registry *doer.Registry
	Session  *session.State
	Log      *obs.Logger

	// Demul is the shared SPMC pool workers drain for the embarrassingly
	// parallel demul stage, per §4.5's round-robin fan-out note. Nil
	// disables it — only workers configured to participate in demul
	// need to poll it.
	Demul lfq.Queue[event.Event]
}

// Run pins the calling goroutine's OS thread to w.CPU (best effort; a
// pinning failure is logged and the loop continues unpinned rather than
// aborting the worker), signals the session's start barrier, then
// dispatches events until the session stops running and its request
// queue is empty. Per-doer timing and slow-call logging is the
// responsibility of the doer.Instrumented wrapper the Registry was built
// with, not this loop.
//
// Run is intended to be the entire body of a goroutine:
//
//	go w.Run()
func (w *Worker) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if w.CPU >= 0 {
		if err := pin(w.CPU); err != nil {
			w.Log.Warning().
				Int("worker_id", w.ID).
				Int("cpu", w.CPU).
				Err(err).
				Log("failed to pin worker to cpu, continuing unpinned")
		}
	}

	done := w.Session.StartBarrier()
	done()

	stop := w.Session.StopBarrier()
	defer stop()
	defer w.recoverPanic()

	backoff := spin.Wait{}
	for w.Session.Running() {
		req, ok := w.dequeue()
		if !ok {
			backoff.Once()
			continue
		}

		resp := w.Registry.Dispatch(req)
		w.pushCompletion(resp)
	}

	w.drainRemaining()
}

// recoverPanic intercepts any panic escaping Run. A counters.GateViolation
// is a programming error and is re-panicked to crash the process; any
// other panic is logged and the session is stopped so the rest of the
// fleet still tears down cleanly instead of waiting on a dead worker.
func (w *Worker) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(counters.GateViolation); ok {
		panic(r)
	}
	w.Log.Err().Int("worker_id", w.ID).Any("panic", r).Log("worker: recovered panic, stopping session")
	w.Session.Stop()
}

// dequeue polls the dedicated request queue first, then the shared
// demul pool if configured, so a worker with no demul work queued
// doesn't starve its own request queue.
func (w *Worker) dequeue() (event.Event, bool) {
	if req, err := w.Requests.Dequeue(); err == nil {
		return req, true
	}
	if w.Demul != nil {
		if req, err := w.Demul.Dequeue(); err == nil {
			return req, true
		}
	}
	return event.Event{}, false
}

func (w *Worker) pushCompletion(resp event.Event) {
	backoff := spin.Wait{}
	for attempt := 0; attempt < enqueueRetryBudget; attempt++ {
		if err := w.Session.Queues.Completion.Enqueue(&resp); err == nil {
			return
		}
		if !w.Session.Running() {
			return
		}
		backoff.Once()
	}
	w.Log.Err().Int("worker_id", w.ID).Int("kind", int(resp.Kind)).
		Log("completion queue full past retry budget, stopping session")
	w.Session.Stop()
}

// drainRemaining dispatches whatever is left in the request queue after
// the session stops running, so in-flight work isn't silently dropped
// during shutdown.
func (w *Worker) drainRemaining() {
	for {
		req, ok := w.dequeue()
		if !ok {
			return
		}
		resp := w.Registry.Dispatch(req)
		_ = w.Session.Queues.Completion.Enqueue(&resp)
	}
}

// pin sets the calling thread's CPU affinity to exactly cpu.
func pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
