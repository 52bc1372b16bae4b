// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scheduler

import (
	"code.hybscloud.com/radiosched/counters"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/radiosched/tag"
	"code.hybscloud.com/spin"
)

// dispatchKey names one "have I already enqueued this" gate, so a
// threshold observed on every completion in a batch (e.g. every FFT
// completion for a symbol after the last one) only fires its downstream
// stage once. label is a short stage-local string, not an event.Kind,
// because some gates (like "this frame's downlink encode dispatched")
// don't correspond 1:1 with a completion kind.
type dispatchKey struct {
	label string
	t     tag.Tag
}

// Master is the single-threaded scheduler loop: it drains the session's
// completion queue, advances counters.SharedCounters per completion, and
// enqueues the next stage's requests once a gate opens. Grounded on the
// teacher's single-goroutine queue-draining pattern, generalized from one
// flat request stream to the frame pipeline's per-stage fan-out/fan-in.
type Master struct {
	Session *session.State
	Log     *obs.Logger

	topo topology

	dispatched         map[dispatchKey]struct{}
	decodeCompletions  map[uint32]uint32
	precodeCompletions map[uint32]uint32
	encodeSymbolsReady map[uint32]uint32
	lastCur            uint32
}

// New builds a Master for sess, deriving its frame/symbol topology from
// sess.Config.
func New(sess *session.State, log *obs.Logger) *Master {
	return &Master{
		Session:            sess,
		Log:                log,
		topo:               newTopology(sess.Config),
		dispatched:         make(map[dispatchKey]struct{}),
		decodeCompletions:  make(map[uint32]uint32),
		precodeCompletions: make(map[uint32]uint32),
		encodeSymbolsReady: make(map[uint32]uint32),
	}
}

// Run is intended to be the entire body of a goroutine: go m.Run(). It
// drains the completion queue until the session stops running, then
// drains whatever remains so no in-flight completion is silently
// dropped during shutdown.
func (m *Master) Run() {
	done := m.Session.StartBarrier()
	done()
	stop := m.Session.StopBarrier()
	defer stop()
	defer m.recoverPanic()

	backoff := spin.Wait{}
	for m.Session.Running() {
		ev, err := m.Session.Queues.Completion.Dequeue()
		if err != nil {
			backoff.Once()
			continue
		}
		m.handle(ev)
		m.updateBackpressure()
	}

	for {
		ev, err := m.Session.Queues.Completion.Dequeue()
		if err != nil {
			return
		}
		m.handle(ev)
	}
}

// recoverPanic intercepts any panic escaping Run. A counters.GateViolation
// is a programming error, not a runtime condition, and is re-panicked to
// keep crashing the process; anything else is logged and the session is
// stopped so the rest of the fleet still tears down cleanly.
func (m *Master) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(counters.GateViolation); ok {
		panic(r)
	}
	m.Log.Err().Any("panic", r).Log("master: recovered panic, stopping session")
	m.Session.Stop()
}

// updateBackpressure recomputes the session's RX-admission signal from
// the current window occupancy (§4.5): admission is paused once the
// outstanding span latest-cur reaches W-1, one frame shy of overrun, and
// resumed once it drops back below that.
func (m *Master) updateBackpressure() {
	cur := m.Session.Counters.CurFrame()
	latest := m.Session.Counters.LatestFrame()
	window := m.Session.Config.Window
	admit := latest < cur || latest-cur < window-1
	m.Session.SetAdmitRX(admit)

	if cur != m.lastCur {
		m.lastCur = cur
		m.pruneRetired(cur)
	}
}

// pruneRetired drops any per-frame bookkeeping for frames that have
// fallen out of the admitted window, so these maps stay bounded by the
// number of in-flight frames rather than growing without limit.
func (m *Master) pruneRetired(cur uint32) {
	for k := range m.dispatched {
		if k.t.Frame() < cur {
			delete(m.dispatched, k)
		}
	}
	for f := range m.decodeCompletions {
		if f < cur {
			delete(m.decodeCompletions, f)
		}
	}
	for f := range m.precodeCompletions {
		if f < cur {
			delete(m.precodeCompletions, f)
		}
	}
	for f := range m.encodeSymbolsReady {
		if f < cur {
			delete(m.encodeSymbolsReady, f)
		}
	}
}

// markOnce reports whether (label, t) has not yet fired, and if so,
// records that it has. Used to guard a dispatch loop that would
// otherwise re-run on every completion that observes an already-crossed
// threshold.
func (m *Master) markOnce(label string, t tag.Tag) bool {
	k := dispatchKey{label, t}
	if _, ok := m.dispatched[k]; ok {
		return false
	}
	m.dispatched[k] = struct{}{}
	return true
}

func (m *Master) handle(ev event.Event) {
	switch ev.Kind {
	case event.KindPacketRX:
		m.handleRX(ev.Tag)
	case event.KindFFT:
		m.handleFFT(ev.Tag)
	case event.KindCSI:
		m.handleCSI(ev.Tag)
	case event.KindZF:
		m.handleZF(ev.Tag)
	case event.KindDemul:
		m.handleDemul(ev.Tag)
	case event.KindDecode:
		m.handleDecode(ev.Tag)
	case event.KindEncode:
		m.handleEncode(ev.Tag)
	case event.KindPrecode:
		m.handlePrecode(ev.Tag)
	case event.KindIFFT:
		m.handleIFFT(ev.Tag)
	case event.KindPacketTX, event.KindPacketPilotTX:
		// TX completion acks from the radio front end; nothing further
		// to schedule.
	default:
		m.Log.Warning().Int("kind", int(ev.Kind)).Log("unroutable completion kind")
	}
}

func (m *Master) handleRX(t tag.Tag) {
	frame, symbol := t.Frame(), uint32(t.Symbol())
	antenna := t.Antenna()

	class, ulIdx := m.topo.classify(symbol)
	pkt := counters.Packet{
		Frame:     frame,
		Symbol:    symbol,
		IsPilot:   class == classPilot,
		IsULData:  class == classULData,
		ULDataIdx: ulIdx,
	}
	if !m.Session.Counters.AddPacket(pkt) {
		m.Log.Warning().Int("frame", int(frame)).Int("symbol", int(symbol)).
			Log("rx packet outside admitted window, dropped")
		return
	}

	m.enqueueRequest(event.Event{Kind: event.KindFFT, Tag: tag.MakeAntennaTag(frame, uint8(symbol), antenna)})

	if m.Session.Counters.IsEncodeReady(frame) && m.markOnce("encode_dispatch", tag.MakeFrameTag(frame, 0)) {
		m.dispatchEncode(frame)
	}
}

func (m *Master) dispatchEncode(frame uint32) {
	for s := m.topo.dlSymbolStart(); s < m.topo.symTotal; s++ {
		for ue := uint32(0); ue < m.topo.numUEs; ue++ {
			m.enqueueRequest(event.Event{Kind: event.KindEncode, Tag: tag.MakeUETag(frame, uint8(s), uint16(ue))})
		}
	}
}

func (m *Master) handleFFT(t tag.Tag) {
	frame, symbol := t.Frame(), uint32(t.Symbol())
	full := m.Session.Counters.MarkFFTDone(frame, symbol)

	class, _ := m.topo.classify(symbol)
	if class == classPilot && full && m.Session.Counters.ReceivedAllPilots(frame) &&
		m.markOnce("csi_dispatch", tag.MakeFrameTag(frame, 0)) {
		m.dispatchPerSCBlock(frame, 0, event.KindCSI)
	}
	if class == classULData {
		m.tryDemul(frame, symbol)
	}
}

func (m *Master) handleCSI(t tag.Tag) {
	frame := t.Frame()
	if m.Session.Counters.MarkCSIDone(frame) && m.markOnce("zf_dispatch", tag.MakeFrameTag(frame, 0)) {
		m.dispatchPerSCBlock(frame, 0, event.KindZF)
	}
}

func (m *Master) handleZF(t tag.Tag) {
	frame := t.Frame()
	m.Session.Counters.MarkZFDone(frame)
	for s := uint32(0); s < m.topo.numULData; s++ {
		m.tryDemul(frame, m.topo.numPilot+s)
	}
}

// tryDemul fans demul out across every subcarrier block for (frame,
// symbol) once both every antenna's data for the symbol has arrived and
// ZF has completed, guarded so repeated ZF/FFT completions for the same
// symbol don't re-dispatch it. symbol is the raw in-frame symbol index;
// counters.SharedCounters keys its UL-data gates by the 0-based index
// within the UL-data portion, so it's converted here.
func (m *Master) tryDemul(frame, symbol uint32) {
	ulIdx := m.topo.ulDataIdx(symbol)
	if !m.Session.Counters.IsDemodReady(frame, ulIdx) {
		return
	}
	if !m.markOnce("demul_dispatch", tag.MakeFrameTag(frame, uint8(symbol))) {
		return
	}
	m.dispatchPerSCBlock(frame, symbol, event.KindDemul)
}

func (m *Master) dispatchPerSCBlock(frame, symbol uint32, kind event.Kind) {
	for sc := uint32(0); sc < m.topo.numSCBlocks; sc++ {
		ev := event.Event{Kind: kind, Tag: tag.MakeSCBlockTag(frame, uint8(symbol), uint16(sc))}
		if kind == event.KindDemul {
			m.enqueueDemul(ev)
			continue
		}
		m.enqueueRequest(ev)
	}
}

// enqueueDemul pushes a demul task onto the shared SPMC pool (§4.5's
// round-robin fan-out): any worker configured to drain it may pick it
// up, instead of a single worker pinned by tag hash.
func (m *Master) enqueueDemul(ev event.Event) {
	backoff := spin.Wait{}
	for attempt := 0; attempt < enqueueRetryBudget; attempt++ {
		if err := m.Session.Queues.Demul.Enqueue(&ev); err == nil {
			return
		}
		if !m.Session.Running() {
			return
		}
		backoff.Once()
	}
	m.Log.Err().Int("frame", int(ev.Tag.Frame())).
		Log("demul queue full past retry budget, stopping session")
	m.Session.Stop()
}

func (m *Master) handleDemul(t tag.Tag) {
	frame, symbol := t.Frame(), uint32(t.Symbol())
	ulIdx := m.topo.ulDataIdx(symbol)
	if m.Session.Counters.MarkDemulDone(frame, ulIdx) && m.Session.Counters.ReadyToDecode(frame, ulIdx) &&
		m.markOnce("decode_dispatch", tag.MakeFrameTag(frame, uint8(symbol))) {
		m.enqueueRequest(event.Event{Kind: event.KindDecode, Tag: tag.MakeFrameTag(frame, uint8(symbol))})
	}
}

func (m *Master) handleDecode(t tag.Tag) {
	frame := t.Frame()
	m.Session.Counters.MarkDecodeDone(frame)
	m.decodeCompletions[frame]++
}

func (m *Master) handleEncode(t tag.Tag) {
	frame, symbol, ue := t.Frame(), uint32(t.Symbol()), uint32(t.UE())
	m.Session.Counters.MarkEncodeDone(ue, frame, symbol)
	if !m.Session.Counters.ReadyToPrecode(ue, frame, symbol) {
		return
	}
	m.Session.Counters.ReceiveEncodedData(frame, symbol)
	if !m.Session.Counters.ReceivedAllEncodedData(frame, symbol) {
		return
	}
	if !m.markOnce("encode_symbol_ready", tag.MakeFrameTag(frame, uint8(symbol))) {
		return
	}
	m.encodeSymbolsReady[frame]++
	if m.encodeSymbolsReady[frame] != m.topo.dlSymbolCount() {
		return
	}
	m.dispatchPrecode(frame)
}

func (m *Master) dispatchPrecode(frame uint32) {
	for sc := uint32(0); sc < m.topo.numSCBlocks; sc++ {
		m.enqueueRequest(event.Event{Kind: event.KindPrecode, Tag: tag.MakeSCBlockTag(frame, 0, uint16(sc))})
	}
}

func (m *Master) handlePrecode(t tag.Tag) {
	frame := t.Frame()
	m.Session.Counters.MarkPrecodeDone(frame)
	m.precodeCompletions[frame]++
	if m.precodeCompletions[frame] != m.topo.numSCBlocks {
		return
	}
	for s := m.topo.dlSymbolStart(); s < m.topo.symTotal; s++ {
		for ant := uint32(0); ant < m.topo.numAntennas; ant++ {
			m.enqueueRequest(event.Event{Kind: event.KindIFFT, Tag: tag.MakeAntennaTag(frame, uint8(s), uint16(ant))})
		}
	}
}

func (m *Master) handleIFFT(t tag.Tag) {
	frame, symbol, ant := t.Frame(), t.Symbol(), t.Antenna()
	class, _ := m.topo.classify(uint32(symbol))
	kind := event.KindPacketTX
	if class == classPilot {
		kind = event.KindPacketPilotTX
	}
	m.enqueueTX(event.Event{Kind: kind, Tag: tag.MakeAntennaTag(frame, symbol, ant)})
}

// enqueueRetryBudget bounds how many times an Enqueue on a full queue is
// retried before it's treated as a hard failure. Queue capacity is sized
// statically at startup (session.NewQueues) and must be sufficient; a
// queue that's still full after this many spins means a downstream
// consumer has stalled, not that the queue is momentarily contended.
const enqueueRetryBudget = 1 << 20

// enqueueRequest routes ev onto a worker's private SPSC queue, hashed by
// tag so every completion for the same (frame, symbol, field) lands on
// the same worker and a worker never sees two requests for an identical
// tag concurrently.
func (m *Master) enqueueRequest(ev event.Event) {
	workers := m.Session.Queues.Requests
	idx := int(hashTag(ev.Tag) % uint64(len(workers)))
	backoff := spin.Wait{}
	for attempt := 0; attempt < enqueueRetryBudget; attempt++ {
		if err := workers[idx].Enqueue(&ev); err == nil {
			return
		}
		if !m.Session.Running() {
			return
		}
		backoff.Once()
	}
	m.Log.Err().Int("worker", idx).Int("kind", int(ev.Kind)).
		Log("request queue full past retry budget, stopping session")
	m.Session.Stop()
}

// enqueueTX pushes a completed IFFT result onto the shared TX dispatch
// pool the radio front end services between receives.
func (m *Master) enqueueTX(ev event.Event) {
	backoff := spin.Wait{}
	for attempt := 0; attempt < enqueueRetryBudget; attempt++ {
		if err := m.Session.Queues.TXDispatch.Enqueue(&ev); err == nil {
			return
		}
		if !m.Session.Running() {
			return
		}
		backoff.Once()
	}
	m.Log.Err().Int("frame", int(ev.Tag.Frame())).
		Log("tx dispatch queue full past retry budget, stopping session")
	m.Session.Stop()
}

// hashTag mixes a Tag's bits (fxhash-style multiply/rotate) so
// consecutive tags don't collide into the same worker.
func hashTag(t tag.Tag) uint64 {
	x := uint64(t)
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
