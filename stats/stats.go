// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stats implements the duration and frame-latency instrumentation
// carried over from the original implementation's shared_counters.hpp:
// per-frame timestamp markers and per-doer-kind max-duration tracking.
// None of this feeds back into scheduling decisions — it is pure
// observability, recorded with relaxed ordering.
package stats

import (
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/radiosched/event"
)

type pad [64]byte

// FrameMarks holds the latency checkpoints for one frame window slot,
// grounded on the original's frame_start_time_/frame_iq_time_/
// frame_end_time_/frame_decode_time_/frame_sc_time_ arrays. Stored per
// slot (not per frame id) to bound memory the same way the counters are.
type FrameMarks struct {
	Start time.Time // first packet received for the frame
	IQ    time.Time // all packets for the frame received
	End   time.Time // frame retired
}

// FrameTimeline records per-slot latency marks across the frame window.
// It is owned by the master and written only from the master goroutine,
// so it needs no synchronization of its own.
type FrameTimeline struct {
	marks []FrameMarks
}

// NewFrameTimeline allocates a timeline sized for window slots.
func NewFrameTimeline(window int) *FrameTimeline {
	return &FrameTimeline{marks: make([]FrameMarks, window)}
}

// MarkStart records the instant the first packet for slot arrived, if not
// already recorded for the current occupant of the slot.
func (ft *FrameTimeline) MarkStart(slot int, now time.Time) {
	if ft.marks[slot].Start.IsZero() {
		ft.marks[slot].Start = now
	}
}

// MarkIQ records the instant every packet for slot's frame arrived.
func (ft *FrameTimeline) MarkIQ(slot int, now time.Time) {
	ft.marks[slot].IQ = now
}

// MarkEnd records the instant slot's frame retired, then resets the slot
// for its next occupant.
func (ft *FrameTimeline) MarkEnd(slot int, now time.Time) FrameMarks {
	ft.marks[slot].End = now
	m := ft.marks[slot]
	ft.marks[slot] = FrameMarks{}
	return m
}

// DurationTracker records, per event kind, the maximum Launch duration
// observed (the duration only, not the tag) — the Go analogue of the
// original's per-thread max_tsc1_..5_ cycle counters, using wall-clock
// time.Duration in place of raw TSC cycles (Go has no portable rdtsc).
// Fields are padded to a cache line to avoid false sharing between
// workers, each of which owns its own DurationTracker.
type DurationTracker struct {
	_   pad
	max [numKinds]atomix.Uint64 // nanoseconds, relaxed ordering
	_   pad
}

const numKinds = int(event.KindRC) + 1

// NewDurationTracker returns a ready-to-use tracker.
func NewDurationTracker() *DurationTracker {
	return &DurationTracker{}
}

// Record updates the tracked maximum for kind if d exceeds it.
func (t *DurationTracker) Record(kind event.Kind, d time.Duration) {
	ns := uint64(d.Nanoseconds())
	for {
		cur := t.max[kind].LoadRelaxed()
		if ns <= cur {
			return
		}
		if t.max[kind].CompareAndSwapRelaxed(cur, ns) {
			return
		}
	}
}

// Max returns the largest duration observed for kind so far.
func (t *DurationTracker) Max(kind event.Kind) time.Duration {
	return time.Duration(t.max[kind].LoadRelaxed())
}
