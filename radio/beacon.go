// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radio

// BeaconDetector locates a beacon within a window of normalized complex
// samples, returning its sample index and whether one was found. The
// original's AVX gold-sequence correlation (CommsLib::FindBeaconAvx) is
// DSP and stays out of scope; this is the injectable seam in its place,
// the same pattern dsp.Kernels uses for the DSP non-goals.
type BeaconDetector func(samples []complex64) (index int, ok bool)

// SyncState is the software-framer beacon-sync state.
type SyncState uint8

const (
	// Unsynced means no beacon has been located yet; the front end is
	// still searching for frame alignment.
	Unsynced SyncState = iota
	// Synced means rx_offset and time0 are established and the front
	// end is receiving aligned frames.
	Synced
)

func (s SyncState) String() string {
	if s == Synced {
		return "synced"
	}
	return "unsynced"
}

// defaultResyncInterval and defaultResyncRetryMax match the original's
// periodic resync cadence and fatal retry budget.
const (
	defaultResyncInterval = 1000
	defaultResyncRetryMax = 100
)

// Sync implements the UNSYNCED/SYNCED beacon-sync state machine,
// grounded on LoopTxRxArgosSync. It is transport-agnostic: callers feed
// it sample windows and receive timestamps; it never touches a socket
// itself, so the invariant in testable property 4 (beacon at a known
// offset implies a specific rx_offset and time0) can be exercised
// directly without a running front end.
type Sync struct {
	Detect     BeaconDetector
	BeaconLen  int
	ZeroPrefix int

	// ResyncInterval is the frame count between periodic resync
	// attempts; zero disables periodic resync. ResyncRetryMax is the
	// number of consecutive resync failures tolerated before
	// ResyncExhausted reports true (§7, beacon loss).
	ResyncInterval int
	ResyncRetryMax int

	state         SyncState
	rxOffset      int
	time0         uint64
	resyncRetries int
}

// NewSync returns a Sync ready to search for a beacon, using the
// original's default resync cadence and retry budget.
func NewSync(detect BeaconDetector, beaconLen, zeroPrefix int) *Sync {
	return &Sync{
		Detect:         detect,
		BeaconLen:      beaconLen,
		ZeroPrefix:     zeroPrefix,
		ResyncInterval: defaultResyncInterval,
		ResyncRetryMax: defaultResyncRetryMax,
	}
}

// State reports the current sync state.
func (s *Sync) State() SyncState { return s.state }

// RxOffset reports the sample count to drain after a beacon is found so
// subsequent reads align to frame boundaries.
func (s *Sync) RxOffset() int { return s.rxOffset }

// Time0 reports the rx timestamp anchor established at initial sync (or
// last adjusted by Resync).
func (s *Sync) Time0() uint64 { return s.time0 }

// TryInitialSync attempts the UNSYNCED → SYNCED transition against one
// frame worth of samples captured at rxTime. On success it computes
// rx_offset = beacon_index - beacon_len - zero_prefix, captures time0,
// transitions to Synced, and returns true. A no-op (returns true
// immediately) once already synced.
func (s *Sync) TryInitialSync(samples []complex64, rxTime uint64) bool {
	if s.state == Synced {
		return true
	}
	idx, ok := s.Detect(samples)
	if !ok {
		return false
	}
	s.rxOffset = idx - s.BeaconLen - s.ZeroPrefix
	s.time0 = rxTime
	s.state = Synced
	return true
}

// ShouldResync reports whether frameID is a periodic resync checkpoint.
func (s *Sync) ShouldResync(frameID uint32) bool {
	if s.ResyncInterval <= 0 {
		return false
	}
	return frameID > 0 && int(frameID)%s.ResyncInterval == 0
}

// Resync re-runs beacon detection against the just-received beacon
// symbol. On success it computes the residual offset, nudges time0 by
// it, resets the consecutive-failure counter, and returns the offset. On
// failure it counts the attempt against ResyncRetryMax and returns
// ok=false; the caller checks ResyncExhausted to decide whether to stop
// the session (fatal beacon loss, §7).
func (s *Sync) Resync(beaconSymbol []complex64) (offset int, ok bool) {
	idx, found := s.Detect(beaconSymbol)
	if !found {
		s.resyncRetries++
		return 0, false
	}
	offset = idx - s.BeaconLen - s.ZeroPrefix
	s.time0 += uint64(int64(offset))
	s.resyncRetries = 0
	return offset, true
}

// ResyncExhausted reports whether consecutive resync failures have
// exceeded ResyncRetryMax, the fatal beacon-loss condition (§7).
func (s *Sync) ResyncExhausted() bool {
	return s.resyncRetries > s.ResyncRetryMax
}

// Reset clears accumulated resync failures, e.g. after a caller handles
// a transient condition without treating it as beacon loss.
func (s *Sync) Reset() {
	s.resyncRetries = 0
}

// FakeBeaconDetector returns a BeaconDetector that reports the beacon
// always present at beaconLen+zeroPrefix, the aligned position a
// zero-offset loopback deployment produces. It performs no correlation
// at all, mirroring dsp.Fake's role as a deterministic stand-in for the
// real gold-sequence search.
func FakeBeaconDetector(beaconLen, zeroPrefix int) BeaconDetector {
	return func(samples []complex64) (int, bool) {
		idx := beaconLen + zeroPrefix
		if idx > len(samples) {
			return 0, false
		}
		return idx, true
	}
}
