// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfq provides bounded FIFO queue implementations used as the
// transport layer between the frame scheduler's master thread, its pinned
// worker threads, and the radio front-end threads.
//
// The package offers queue variants optimized for different
// producer/consumer patterns:
//
//   - SPSC: Single-Producer Single-Consumer — one request queue per worker
//   - MPSC: Multi-Producer Single-Consumer — the shared completion queue
//   - SPMC: Single-Producer Multi-Consumer — a round-robin work pool for an
//     embarrassingly parallel stage (e.g. demul, spread across its threads)
//   - MPMC: Multi-Producer Multi-Consumer — the TX dispatch queue, fed by
//     the master on each IFFT completion and drained by every radio TX thread
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := lfq.NewSPSC[Event](1024)
//	q := lfq.NewMPMC[Event](4096)
//
// Builder API auto-selects algorithm based on constraints:
//
//	q := lfq.Build[Event](lfq.New(1024).SingleProducer().SingleConsumer())  // → SPSC
//	q := lfq.Build[Event](lfq.New(1024).SingleConsumer())                   // → MPSC
//	q := lfq.Build[Event](lfq.New(1024).SingleProducer())                   // → SPMC
//	q := lfq.Build[Event](lfq.New(1024))                                    // → MPMC
//
// # Basic Usage
//
// All queues share the same interface for enqueueing and dequeueing:
//
//	// Create a queue
//	q := lfq.NewMPMC[Event](1024)
//
//	// Enqueue (non-blocking)
//	ev := Event{Kind: KindFFT, Tag: tag}
//	err := q.Enqueue(&ev)
//	if lfq.IsWouldBlock(err) {
//	    // Queue is full - handle backpressure
//	}
//
//	// Dequeue (non-blocking)
//	elem, err := q.Dequeue()
//	if lfq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Wiring patterns used by the scheduler
//
// Per-worker request queue (SPSC):
//
//	// Master → one fixed worker
//	q := lfq.NewSPSC[Event](2048)
//
//	// Master (producer)
//	for req := range outbound {
//	    backoff := iox.Backoff{}
//	    for q.Enqueue(&req) != nil {
//	        backoff.Wait()
//	    }
//	}
//
//	// Worker (consumer, single goroutine, core-pinned)
//	for running.Load() {
//	    ev, err := q.Dequeue()
//	    if err == nil {
//	        dispatch(ev)
//	    }
//	}
//
// Completion aggregation (MPSC):
//
//	// Every worker and radio thread → the master
//	q := lfq.NewMPSC[Event](8192)
//
//	// Workers (producers)
//	for range numWorkers {
//	    go func() {
//	        for ev := range completions {
//	            q.Enqueue(&ev)
//	        }
//	    }()
//	}
//
//	// Master (single consumer)
//	for running.Load() {
//	    ev, err := q.Dequeue()
//	    if err == nil {
//	        scheduler.Handle(ev)
//	    }
//	}
//
// Round-robin work pool (SPMC):
//
//	// Master dispatcher → all demul workers
//	q := lfq.NewSPMC[Event](4096)
//
//	// Master (single producer)
//	for task := range demulTasks {
//	    for q.Enqueue(&task) != nil {
//	        spin.Wait{}.Once()
//	    }
//	}
//
//	// Demul worker threads (multiple consumers)
//	for range numDemulWorkers {
//	    go func() {
//	        for {
//	            task, err := q.Dequeue()
//	            if err == nil {
//	                task.Execute()
//	            }
//	        }
//	    }()
//	}
//
// TX dispatch (MPMC):
//
//	// Master (on each IFFT completion) → every radio TX thread
//	q := lfq.NewMPMC[Event](4096)
//
//	// Radio TX threads (multiple consumers)
//	for range numRadios {
//	    go func() {
//	        for {
//	            ev, err := q.Dequeue()
//	            if err == nil {
//	                transmit(ev)
//	            }
//	        }
//	    }()
//	}
//
//	// Submit from the master
//	func submitTX(ev Event) error {
//	    return q.Enqueue(&ev)
//	}
//
// # Algorithm Selection
//
// The builder selects algorithms based on constraints and Compact() hint:
//
// Default (FAA-based, 2n slots for capacity n):
//
//	SPSC: Lamport ring buffer (n slots, already optimal)
//	MPSC: FAA producers, sequential consumer
//	SPMC: Sequential producer, FAA consumers
//	MPMC: FAA-based SCQ algorithm
//
// With Compact() (CAS-based, n slots for capacity n):
//
//	SPSC: Same as default (already optimal)
//	MPSC: CAS producers, sequential consumer
//	SPMC: Sequential producer, CAS consumers
//	MPMC: Sequence-based algorithm
//
// FAA (Fetch-And-Add) scales better under high contention but requires
// 2n physical slots. Compact mode favors memory-constrained bench-head
// deployments where the event backlog per frame window is small and bounded.
//
// # Error Handling
//
// Queues return [ErrWouldBlock] when operations cannot proceed. This error
// is sourced from [code.hybscloud.com/iox] for ecosystem consistency. The
// master scheduler treats every dequeue-side ErrWouldBlock as "no completion
// ready yet" and spins with [code.hybscloud.com/spin.Wait]; an
// enqueue-side ErrWouldBlock that persists past a bounded retry budget is
// treated as a sizing bug and stops the session.
//
// # Capacity and Length
//
// Capacity rounds up to the next power of 2. Length is intentionally not
// provided because accurate counts in lock-free algorithms require
// expensive cross-core synchronization; the scheduler tracks in-flight
// frame counts itself via the shared counters, not via queue length.
//
// # Thread Safety
//
// All queue operations are thread-safe within their access pattern constraints:
//
//   - SPSC: One producer goroutine, one consumer goroutine
//   - MPSC: Multiple producer goroutines, one consumer goroutine
//   - SPMC: One producer goroutine, multiple consumer goroutines
//   - MPMC: Multiple producer and consumer goroutines
//
// Violating these constraints (e.g., multiple producers on SPSC) causes
// undefined behavior including data corruption and races.
//
// # Graceful Shutdown
//
// The FAA-based MPMC and SPMC queues include a threshold mechanism to prevent
// livelock. This mechanism may cause Dequeue to return [ErrWouldBlock] even when
// items remain, waiting for producer activity to reset the threshold.
//
// For graceful shutdown, use [Drainer]: once the process-wide running flag
// is cleared, producers stop enqueueing and call Drain so consumers fully
// drain the backlog before exiting.
//
//	if d, ok := q.(lfq.Drainer); ok {
//	    d.Drain()
//	}
//
// SPSC queues do not implement [Drainer] as they have no threshold mechanism.
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm verification.
// The race detector tracks explicit synchronization primitives (mutex, channels,
// WaitGroup) but cannot observe happens-before relationships established through
// atomic memory orderings (acquire-release semantics). These algorithms are
// correct, but the race detector may report false positives for them; tests
// that stress this package directly are excluded under //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package lfq
