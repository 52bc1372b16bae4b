// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package counters implements the frame-window shared counters: the
// atomic per-slot state through which RX and worker threads signal the
// master that enough inputs are available for each downstream stage, and
// through which the master retires a frame slot once its terminal stage
// completes.
//
// SharedCounters is the centerpiece of the scheduler. Every increment that
// can complete a threshold uses acquire/release ordering against the
// buffer it guards, so a reader that observes the threshold is guaranteed
// to see every write that happened before it.
package counters

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
)

type pad [64]byte

// Packet describes one accepted RX packet, enough to drive AddPacket.
type Packet struct {
	Frame     uint32
	Symbol    uint32
	IsPilot   bool
	IsULData  bool
	ULDataIdx uint32 // symbol index within the UL-data portion of the frame
}

// SharedCounters holds the per-slot atomic state for one session. It is
// constructed once at startup and shared by reference across the master,
// every worker, and every radio thread.
type SharedCounters struct {
	cfg Config

	_ pad
	// curFrame is the first frame for which the active retirement path
	// has not yet completed.
	curFrame atomix.Uint64
	_        pad
	// latestFrame is the highest frame id any RX thread has observed.
	latestFrame atomix.Uint64
	_           pad
	// retireMu guards the critical section that zeroes a slot's counters
	// and advances curFrame. This is the only mutex acquisition on the
	// hot path and it is guaranteed short.
	retireMu sync.Mutex

	numPkts      []atomix.Uint64   // [slot]
	numPilotPkts []atomix.Uint64   // [slot]
	numDataPkts  [][]atomix.Uint64 // [slot][symbol]
	encodeReady  []atomix.Bool     // [slot]

	fftDone   [][]atomix.Uint64 // [slot][symbol]
	csiDone   []atomix.Uint64   // [slot]
	zfDone    []atomix.Uint64   // [slot]
	demulDone [][]atomix.Uint64 // [slot][symbol]

	decodeDone      []atomix.Uint64     // [slot]
	encodeDone      [][][]atomix.Uint64 // [slot][ue][symbol]
	precodeDone     []atomix.Uint64     // [slot]
	demodDataRecv   [][][]atomix.Uint64 // [ue][slot][symbol]
	encodedDataRecv [][]atomix.Uint64   // [slot][symbol]

	pilotThreshold   uint32
	pktThreshold     uint32
	decodeThreshold  uint32
	precodeThreshold uint32
}

// New constructs a SharedCounters sized per cfg. cfg.Window must be a
// power of two.
func New(cfg Config) *SharedCounters {
	if cfg.Window == 0 || cfg.Window&(cfg.Window-1) != 0 {
		panic("counters: Window must be a power of two")
	}
	w, sym, ue := int(cfg.Window), int(cfg.MaxSymbols), int(cfg.NumUE)

	c := &SharedCounters{
		cfg:          cfg,
		numPkts:      make([]atomix.Uint64, w),
		numPilotPkts: make([]atomix.Uint64, w),
		numDataPkts:  make2D(w, sym),
		encodeReady:  make([]atomix.Bool, w),
		fftDone:      make2D(w, sym),
		csiDone:      make([]atomix.Uint64, w),
		zfDone:       make([]atomix.Uint64, w),
		demulDone:    make2D(w, sym),
		decodeDone:   make([]atomix.Uint64, w),
		encodeDone:   make3D(w, ue, sym),
		precodeDone:  make([]atomix.Uint64, w),

		pilotThreshold:   cfg.numPilotPktsThreshold(),
		pktThreshold:     cfg.numPktsPerFrameThreshold(),
		decodeThreshold:  cfg.NumDecodeTasks,
		precodeThreshold: cfg.NumSCBlocks,
	}
	c.demodDataRecv = make3D(ue, w, sym)
	c.encodedDataRecv = make2D(w, sym)
	return c
}

func make2D(a, b int) [][]atomix.Uint64 {
	out := make([][]atomix.Uint64, a)
	for i := range out {
		out[i] = make([]atomix.Uint64, b)
	}
	return out
}

func make3D(a, b, c int) [][][]atomix.Uint64 {
	out := make([][][]atomix.Uint64, a)
	for i := range out {
		out[i] = make2D(b, c)
	}
	return out
}

// CurFrame returns the first frame for which the active retirement path
// has not yet completed.
func (c *SharedCounters) CurFrame() uint32 {
	return uint32(c.curFrame.LoadAcquire())
}

// LatestFrame returns the highest frame id any RX thread has observed.
func (c *SharedCounters) LatestFrame() uint32 {
	return uint32(c.latestFrame.LoadAcquire())
}

// InWindow reports whether frame lies in [CurFrame, CurFrame+Window).
func (c *SharedCounters) InWindow(frame uint32) bool {
	cur := c.CurFrame()
	return frame >= cur && frame < cur+c.cfg.Window
}

func (c *SharedCounters) slot(frame uint32) uint32 {
	return frame & (c.cfg.Window - 1)
}

// GateViolation is the panic value checkGate raises: a completion arrived
// for a frame outside the window currently admitted. It is a distinct
// type so a goroutine's top-level recover can tell this apart from every
// other panic and let it keep unwinding instead of treating it as a
// soft failure.
type GateViolation struct {
	Frame  uint32
	Cur    uint32
	Window uint32
}

func (v GateViolation) Error() string {
	return fmt.Sprintf("counters: gate violation: frame %d outside window [%d, %d)", v.Frame, v.Cur, v.Cur+v.Window)
}

// checkGate panics with a GateViolation if frame is outside the admitted
// window. A completion for a frame outside the window is a programming
// error, not a runtime condition to recover from: the caller's top-level
// recover re-panics on this type instead of logging and continuing.
func (c *SharedCounters) checkGate(frame uint32) {
	if !c.InWindow(frame) {
		panic(GateViolation{Frame: frame, Cur: c.CurFrame(), Window: c.cfg.Window})
	}
}

// AddPacket records one accepted RX packet. It returns false without
// mutating any counter if the packet's frame is beyond the admitted
// window (overrun); the caller logs and drops it.
func (c *SharedCounters) AddPacket(pkt Packet) bool {
	if pkt.Frame >= c.CurFrame()+c.cfg.Window {
		return false
	}
	slot := c.slot(pkt.Frame)

	n := c.numPkts[slot].AddAcqRel(1)
	c.encodeReady[slot].StoreRelease(true)
	full := uint32(n) == c.pktThreshold

	if pkt.IsPilot {
		c.numPilotPkts[slot].AddAcqRel(1)
	} else if pkt.IsULData {
		c.numDataPkts[slot][pkt.ULDataIdx].AddAcqRel(1)
	}

	for {
		latest := c.latestFrame.LoadAcquire()
		if uint64(pkt.Frame) <= latest {
			break
		}
		if c.latestFrame.CompareAndSwapAcqRel(latest, uint64(pkt.Frame)) {
			break
		}
	}

	if full && c.cfg.Mode == ModeTestFastRetire && pkt.Frame == c.CurFrame() {
		c.retireMu.Lock()
		for uint32(c.numPkts[c.slot(c.CurFrame())].LoadAcquire()) == c.pktThreshold {
			c.retireSlotLocked(c.slot(c.CurFrame()))
			c.curFrame.AddAcqRel(1)
		}
		c.retireMu.Unlock()
	}
	return true
}

// ReceivedAllPilots reports whether every pilot packet for frame has
// arrived.
func (c *SharedCounters) ReceivedAllPilots(frame uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	return uint32(c.numPilotPkts[c.slot(frame)].LoadAcquire()) == c.pilotThreshold
}

// IsDemodReady reports whether demul may run for (frame, symbol): every
// antenna's data for the symbol has arrived and ZF has completed.
func (c *SharedCounters) IsDemodReady(frame, symbol uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	slot := c.slot(frame)
	return uint32(c.numDataPkts[slot][symbol].LoadAcquire()) == c.cfg.NumAnt &&
		uint32(c.zfDone[slot].LoadAcquire()) == c.cfg.NumSCBlocks
}

// IsEncodeReady reports whether encode may run for frame: any packet of
// any kind for the frame has arrived, marking MAC inputs present.
func (c *SharedCounters) IsEncodeReady(frame uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	return c.encodeReady[c.slot(frame)].LoadAcquire()
}

// MarkFFTDone increments the FFT completion counter for (frame, symbol)
// and reports whether this call observed the threshold (CSI may now run).
func (c *SharedCounters) MarkFFTDone(frame, symbol uint32) bool {
	c.checkGate(frame)
	n := c.fftDone[c.slot(frame)][symbol].AddAcqRel(1)
	return uint32(n) == c.cfg.NumAnt
}

// MarkCSIDone increments the CSI completion counter for frame and reports
// whether this call observed the threshold (ZF may now run).
func (c *SharedCounters) MarkCSIDone(frame uint32) bool {
	c.checkGate(frame)
	n := c.csiDone[c.slot(frame)].AddAcqRel(1)
	return uint32(n) == c.cfg.NumSCBlocks
}

// MarkZFDone increments the ZF completion counter for frame.
func (c *SharedCounters) MarkZFDone(frame uint32) bool {
	c.checkGate(frame)
	n := c.zfDone[c.slot(frame)].AddAcqRel(1)
	return uint32(n) == c.cfg.NumSCBlocks
}

// MarkDemulDone increments the demul completion counter for (frame,
// symbol) and reports whether decode may now run for it.
func (c *SharedCounters) MarkDemulDone(frame, symbol uint32) bool {
	c.checkGate(frame)
	n := c.demulDone[c.slot(frame)][symbol].AddAcqRel(1)
	return uint32(n) == c.cfg.NumSCBlocks
}

// ReadyToDecode reports whether decode may run for (frame, symbol).
func (c *SharedCounters) ReadyToDecode(frame, symbol uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	return uint32(c.demulDone[c.slot(frame)][symbol].LoadAcquire()) == c.cfg.NumSCBlocks
}

// ReadyToPrecode reports whether precode may run for (ue, frame, symbol).
func (c *SharedCounters) ReadyToPrecode(ue, frame, symbol uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	return c.encodeDone[c.slot(frame)][ue][symbol].LoadAcquire() == 1
}

// MarkEncodeDone increments the encode completion counter for
// (ue, frame, symbol).
func (c *SharedCounters) MarkEncodeDone(ue, frame, symbol uint32) {
	c.checkGate(frame)
	c.encodeDone[c.slot(frame)][ue][symbol].AddAcqRel(1)
}

// ReceiveDemodData records one collaborating node's demod data arrival
// for (ue, frame, symbol).
func (c *SharedCounters) ReceiveDemodData(ue, frame, symbol uint32) {
	c.checkGate(frame)
	c.demodDataRecv[ue][c.slot(frame)][symbol].AddAcqRel(1)
}

// ReceivedAllDemodData reports whether every collaborating node's demod
// data has arrived for (ue, frame, symbol), consuming the counter.
func (c *SharedCounters) ReceivedAllDemodData(ue, frame, symbol uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	slot := c.slot(frame)
	if uint32(c.demodDataRecv[ue][slot][symbol].LoadAcquire()) == c.cfg.NumDemodDataRequired {
		c.demodDataRecv[ue][slot][symbol].StoreRelease(0)
		return true
	}
	return false
}

// ReceiveEncodedData records one UE's encoded data arrival for
// (frame, symbol).
func (c *SharedCounters) ReceiveEncodedData(frame, symbol uint32) {
	c.checkGate(frame)
	c.encodedDataRecv[c.slot(frame)][symbol].AddAcqRel(1)
}

// ReceivedAllEncodedData reports whether every UE's encoded data has
// arrived for (frame, symbol).
func (c *SharedCounters) ReceivedAllEncodedData(frame, symbol uint32) bool {
	if !c.InWindow(frame) {
		return false
	}
	return uint32(c.encodedDataRecv[c.slot(frame)][symbol].LoadAcquire()) == c.cfg.NumUE
}

// MarkDecodeDone increments the decode completion counter for frame. When
// the configured retirement mode is ModeUplink and this call observes the
// threshold, it attempts to retire frame (and any subsequent frame slots
// that are already complete).
func (c *SharedCounters) MarkDecodeDone(frame uint32) {
	c.checkGate(frame)
	slot := c.slot(frame)
	n := c.decodeDone[slot].AddAcqRel(1)
	if c.cfg.Mode != ModeUplink || uint32(n) != c.decodeThreshold {
		return
	}
	c.retireMu.Lock()
	defer c.retireMu.Unlock()
	for uint32(c.decodeDone[c.slot(c.CurFrame())].LoadAcquire()) == c.decodeThreshold {
		c.retireSlotLocked(c.slot(c.CurFrame()))
		c.curFrame.AddAcqRel(1)
	}
}

// MarkPrecodeDone increments the precode completion counter for frame.
// When the configured retirement mode is ModeDownlink and this call
// observes the threshold, it attempts to retire frame.
func (c *SharedCounters) MarkPrecodeDone(frame uint32) {
	c.checkGate(frame)
	slot := c.slot(frame)
	n := c.precodeDone[slot].AddAcqRel(1)
	if c.cfg.Mode != ModeDownlink || uint32(n) != c.precodeThreshold {
		return
	}
	c.retireMu.Lock()
	defer c.retireMu.Unlock()
	for uint32(c.precodeDone[c.slot(c.CurFrame())].LoadAcquire()) == c.precodeThreshold {
		c.retireSlotLocked(c.slot(c.CurFrame()))
		c.curFrame.AddAcqRel(1)
	}
}

// retireSlotLocked zeroes every per-slot counter for slot. Callers must
// hold retireMu. This is the only place any counter is zeroed.
func (c *SharedCounters) retireSlotLocked(slot uint32) {
	c.numPkts[slot].StoreRelease(0)
	c.numPilotPkts[slot].StoreRelease(0)
	for i := range c.numDataPkts[slot] {
		c.numDataPkts[slot][i].StoreRelease(0)
		c.fftDone[slot][i].StoreRelease(0)
		c.demulDone[slot][i].StoreRelease(0)
	}
	c.encodeReady[slot].StoreRelease(false)
	c.csiDone[slot].StoreRelease(0)
	c.zfDone[slot].StoreRelease(0)
	c.decodeDone[slot].StoreRelease(0)
	c.precodeDone[slot].StoreRelease(0)
	for ue := range c.encodeDone[slot] {
		for sym := range c.encodeDone[slot][ue] {
			c.encodeDone[slot][ue][sym].StoreRelease(0)
		}
	}
	for i := range c.encodedDataRecv[slot] {
		c.encodedDataRecv[slot][i].StoreRelease(0)
	}
	for ue := range c.demodDataRecv {
		for sym := range c.demodDataRecv[ue][slot] {
			c.demodDataRecv[ue][slot][sym].StoreRelease(0)
		}
	}
}
