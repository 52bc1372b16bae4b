// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radio

import (
	"context"
	"runtime"
	"time"

	"code.hybscloud.com/radiosched/counters"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/radiosched/tag"
	"code.hybscloud.com/spin"
	"golang.org/x/sys/unix"
)

// SymbolPlan classifies each symbol within a frame, static per
// deployment (supplied by configuration, not computed here).
type SymbolPlan struct {
	Total  uint8
	Pilot  func(symbol uint8) bool
	ULData func(symbol uint8) bool
}

// TXSource supplies the IQ payload to transmit for a given TX tag,
// standing in for the buffer arena (precode/IFFT output) that owns the
// actual sample data. Grounded on DequeueSendArgos's tx_buffer_ lookup by
// offset; the arena itself is out of this package's scope.
type TXSource func(t tag.Tag) []complex64

// FrontEnd runs one radio's software-framer RX/TX loop: beacon sync,
// per-frame reception of pilot/uplink-data symbols into the pipeline,
// and TX servicing between receives. Grounded directly on
// RadioTxRx::LoopTxRxArgosSync, generalized to the UDP emulated-radio
// transport (and any other RadioDriver).
type FrontEnd struct {
	RadioID    int
	CPU        int // -1 means unpinned
	NumSamps   int
	Plan       SymbolPlan
	FrameDelta uint32 // TX_FRAME_DELTA: TX lead time in frames
	TxAdvance  uint64 // cl_tx_advance: per-radio TX timing compensation

	Driver  RadioDriver
	Sync    *Sync
	Source  TXSource
	Session *session.State
	Log     *obs.Logger

	// RXSink, if set, returns the buffer arena cell a received symbol's
	// samples should be decoded directly into, keyed by (frame, symbol)
	// for this radio's antenna. Nil falls back to a throwaway scratch
	// buffer, which is enough to exercise beacon sync and TX timing in
	// isolation but leaves downstream FFT tasks reading uninitialized
	// samples — set it whenever a real pipeline is attached.
	RXSink func(frameID uint32, symbol uint8) []complex64
}

// Run is intended to be the entire body of a goroutine: go f.Run().
func (f *FrontEnd) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if f.CPU >= 0 {
		if err := pin(f.CPU); err != nil {
			f.Log.Warning().Int("radio_id", f.RadioID).Int("cpu", f.CPU).Err(err).
				Log("failed to pin radio thread to cpu, continuing unpinned")
		}
	}

	done := f.Session.StartBarrier()
	done()
	stop := f.Session.StopBarrier()
	defer stop()
	defer f.recoverPanic()

	// ctx is cancelled once the session stops running, so a Recv blocked
	// on an idle socket returns within one readDeadlineStep.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		t := time.NewTicker(readDeadlineStep)
		defer t.Stop()
		for f.Session.Running() {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
		cancel()
	}()
	frmNumSamps := int(f.Plan.Total) * f.NumSamps

	if !f.acquireInitialSync(ctx, frmNumSamps) {
		return
	}

	var (
		frameID  uint32
		beaconIQ []complex64
	)
	for f.Session.Running() {
		iq, rxTime, ok := f.recvBeacon(ctx, frameID)
		if !ok {
			return
		}
		beaconIQ = iq
		if frameID == 0 {
			f.Sync.time0 = rxTime
		}

		f.pushRX(frameID, 0)

		if f.Sync.ShouldResync(frameID) {
			if offset, ok := f.Sync.Resync(beaconIQ); ok {
				f.Log.Info().Int("radio_id", f.RadioID).Int("frame", int(frameID)).Int("offset", offset).
					Log("beacon resync succeeded")
			} else if f.Sync.ResyncExhausted() {
				f.Log.Err().Int("radio_id", f.RadioID).Int("frame", int(frameID)).
					Log("beacon resync retry budget exhausted, stopping")
				f.Session.Stop()
				return
			}
		}

		f.serviceTX(ctx, frameID, frmNumSamps)

		for symbol := uint8(1); symbol < f.Plan.Total; symbol++ {
			if !f.Session.Running() {
				return
			}
			if f.Plan.Pilot(symbol) || f.Plan.ULData(symbol) {
				if !f.recvAndPush(ctx, frameID, symbol) {
					return
				}
			} else {
				f.recvIdle(ctx)
			}
		}

		frameID++
	}
}

// recoverPanic intercepts any panic escaping Run. A counters.GateViolation
// is a programming error and is re-panicked to crash the process; any
// other panic is logged and the session is stopped so the master and
// every worker still tear down cleanly instead of waiting on a dead
// radio thread.
func (f *FrontEnd) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(counters.GateViolation); ok {
		panic(r)
	}
	f.Log.Err().Int("radio_id", f.RadioID).Any("panic", r).Log("radio: recovered panic, stopping session")
	f.Session.Stop()
}

// acquireInitialSync repeatedly receives one frame worth of samples and
// runs beacon detection until Sync transitions to Synced, then drains
// rx_offset samples to realign, mirroring the original's pre-loop
// "keep receiving one frame of data until a beacon is found" phase.
func (f *FrontEnd) acquireInitialSync(ctx context.Context, frmNumSamps int) bool {
	scratch := make([][]complex64, 1)
	scratch[0] = make([]complex64, frmNumSamps)

	for f.Session.Running() && f.Sync.State() != Synced {
		n, rxTime, err := f.Driver.Recv(ctx, f.RadioID, scratch, frmNumSamps)
		if err != nil {
			f.Log.Warning().Int("radio_id", f.RadioID).Err(err).Log("beacon sync receive failed, retrying")
			continue
		}
		if n != frmNumSamps {
			continue
		}
		if f.Sync.TryInitialSync(scratch[0], rxTime) {
			f.Log.Info().Int("radio_id", f.RadioID).Int("rx_offset", f.Sync.RxOffset()).
				Log("beacon detected, synced")
		}
	}
	if !f.Session.Running() {
		return false
	}

	if off := f.Sync.RxOffset(); off > 0 {
		drain := make([][]complex64, 1)
		drain[0] = make([]complex64, off)
		if _, _, err := f.Driver.Recv(ctx, f.RadioID, drain, off); err != nil {
			f.Log.Warning().Int("radio_id", f.RadioID).Err(err).Log("rx_offset drain failed")
		}
	}
	return true
}

func (f *FrontEnd) recvBeacon(ctx context.Context, frameID uint32) ([]complex64, uint64, bool) {
	n := f.NumSamps
	buf := make([][]complex64, 1)
	if f.RXSink != nil {
		buf[0] = f.RXSink(frameID, 0)
	} else {
		buf[0] = make([]complex64, n)
	}
	nb, rxTime, err := f.Driver.Recv(ctx, f.RadioID, buf, n)
	if err != nil {
		f.Log.Warning().Int("radio_id", f.RadioID).Int("frame", int(frameID)).Err(err).
			Log("beacon receive failed")
		return nil, 0, f.Session.Running()
	}
	return buf[0][:nb], rxTime, true
}

func (f *FrontEnd) recvAndPush(ctx context.Context, frameID uint32, symbol uint8) bool {
	buf := make([][]complex64, 1)
	if f.RXSink != nil {
		buf[0] = f.RXSink(frameID, symbol)
	} else {
		buf[0] = make([]complex64, f.NumSamps)
	}
	if _, _, err := f.Driver.Recv(ctx, f.RadioID, buf, f.NumSamps); err != nil {
		f.Log.Warning().Int("radio_id", f.RadioID).Int("frame", int(frameID)).Int("symbol", int(symbol)).Err(err).
			Log("symbol receive failed")
		return f.Session.Running()
	}
	// The master's backpressure signal is advisory: AddPacket enforces
	// the window bound regardless, but there's no point enqueuing a
	// completion the master already knows it will drop.
	if f.Session.AdmitRX() {
		f.pushRX(frameID, symbol)
	}
	return true
}

func (f *FrontEnd) recvIdle(ctx context.Context) {
	buf := make([][]complex64, 1)
	buf[0] = make([]complex64, f.NumSamps)
	_, _, _ = f.Driver.Recv(ctx, f.RadioID, buf, f.NumSamps)
}

func (f *FrontEnd) pushRX(frameID uint32, symbol uint8) {
	ev := event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(frameID, symbol, uint16(f.RadioID))}
	backoff := spin.Wait{}
	for {
		if err := f.Session.Queues.Completion.Enqueue(&ev); err == nil {
			return
		}
		if !f.Session.Running() {
			return
		}
		backoff.Once()
	}
}

// serviceTX drains whatever is waiting on the TX dispatch queue for this
// frame, computing each symbol's TX timestamp per §4.7's software-framer
// formula: time0 + (f + FrameDelta) × frmNumSamps + s × NumSamps −
// TxAdvance. Pilots carry HasTime; the last symbol of a burst carries
// HasTime|EndBurst.
func (f *FrontEnd) serviceTX(ctx context.Context, frameID uint32, frmNumSamps int) {
	for {
		ev, err := f.Session.Queues.TXDispatch.Dequeue()
		if err != nil {
			return
		}
		if ev.Kind != event.KindPacketTX && ev.Kind != event.KindPacketPilotTX {
			continue
		}

		symbol := ev.Tag.Symbol()
		antenna := int(ev.Tag.Antenna())
		txTime := f.Sync.Time0() +
			uint64(frameID+f.FrameDelta)*uint64(frmNumSamps) +
			uint64(symbol)*uint64(f.NumSamps) -
			f.TxAdvance

		flags := HasTime
		if symbol == f.Plan.Total-1 {
			flags |= EndBurst
		}

		// TXDispatch is one shared MPMC pool drained by every front end,
		// so a completion for antenna 2 can land on the goroutine running
		// antenna 0's loop; route the send by the tag's own antenna, not
		// by which front end happened to dequeue it.
		payload := f.Source(ev.Tag)
		buf := [][]complex64{payload}
		if _, err := f.Driver.Send(ctx, antenna, buf, len(payload), flags, txTime); err != nil {
			f.Log.Warning().Int("radio_id", antenna).Int("frame", int(frameID)).Err(err).
				Log("tx send failed")
		}
	}
}

// pin sets the calling thread's CPU affinity to exactly cpu, mirroring
// worker.pin (duplicated rather than shared across packages to keep
// radio free of a worker dependency).
func pin(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
