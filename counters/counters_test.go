// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package counters_test

import (
	"math/rand"
	"testing"

	"code.hybscloud.com/radiosched/counters"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testConfig(mode counters.RetireMode) counters.Config {
	return counters.Config{
		Window:               8,
		MaxSymbols:           16,
		NumAnt:               4,
		NumPilotSym:          1,
		NumULDataSym:         2,
		NumSCBlocks:          2,
		NumUE:                2,
		NumDecodeTasks:       2,
		NumDemodDataRequired: 1,
		Mode:                 mode,
	}
}

// TestHappyPathSingleFrame exercises scenario 1 from the testable
// properties: 4 antennas, 2 UEs, 1 pilot + 2 UL-data symbols, packets
// delivered out of order, fast-retire mode so the uplink chain doesn't
// need to be modeled end to end.
func TestHappyPathSingleFrame(t *testing.T) {
	cfg := testConfig(counters.ModeTestFastRetire)
	c := counters.New(cfg)

	var pkts []counters.Packet
	pkts = append(pkts, counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
	pkts = append(pkts, counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
	pkts = append(pkts, counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
	pkts = append(pkts, counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
	for s := uint32(0); s < 2; s++ {
		for a := uint32(0); a < 4; a++ {
			pkts = append(pkts, counters.Packet{Frame: 0, Symbol: s + 1, IsULData: true, ULDataIdx: s})
		}
	}
	require.Len(t, pkts, 12)

	rand.Shuffle(len(pkts), func(i, j int) { pkts[i], pkts[j] = pkts[j], pkts[i] })
	for _, p := range pkts {
		ok := c.AddPacket(p)
		require.True(t, ok)
	}

	require.Equal(t, uint32(1), c.CurFrame())
}

func TestOverrunRejected(t *testing.T) {
	cfg := testConfig(counters.ModeUplink)
	cfg.Window = 2
	c := counters.New(cfg)

	ok := c.AddPacket(counters.Packet{Frame: 5, IsPilot: true})
	require.False(t, ok)
	require.Equal(t, uint32(0), c.CurFrame())
}

func TestGateViolationPanics(t *testing.T) {
	c := counters.New(testConfig(counters.ModeUplink))
	require.PanicsWithValue(t, counters.GateViolation{Frame: 99, Cur: 0, Window: 8}, func() {
		c.MarkFFTDone(99, 0)
	})
}

// TestDownlinkEncodePrecodeRetirement exercises the downlink completion
// chain MarkEncodeDone -> ReadyToPrecode -> ReceiveEncodedData ->
// ReceivedAllEncodedData -> MarkPrecodeDone, mirroring how
// scheduler.Master drives it (handleEncode, handlePrecode).
func TestDownlinkEncodePrecodeRetirement(t *testing.T) {
	cfg := testConfig(counters.ModeDownlink)
	cfg.NumUE = 2
	cfg.NumSCBlocks = 2
	c := counters.New(cfg)

	const frame, symbol = uint32(0), uint32(0)

	require.False(t, c.ReadyToPrecode(0, frame, symbol))
	c.MarkEncodeDone(0, frame, symbol)
	require.True(t, c.ReadyToPrecode(0, frame, symbol))
	require.False(t, c.ReadyToPrecode(1, frame, symbol))
	c.MarkEncodeDone(1, frame, symbol)
	require.True(t, c.ReadyToPrecode(1, frame, symbol))

	c.ReceiveEncodedData(frame, symbol)
	require.False(t, c.ReceivedAllEncodedData(frame, symbol))
	c.ReceiveEncodedData(frame, symbol)
	require.True(t, c.ReceivedAllEncodedData(frame, symbol))

	c.MarkPrecodeDone(frame)
	require.Equal(t, uint32(0), c.CurFrame())
	c.MarkPrecodeDone(frame)
	require.Equal(t, uint32(1), c.CurFrame())
}

func TestReceivedAllPilots(t *testing.T) {
	cfg := testConfig(counters.ModeUplink)
	c := counters.New(cfg)
	for i := uint32(0); i < cfg.NumAnt-1; i++ {
		c.AddPacket(counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
		require.False(t, c.ReceivedAllPilots(0))
	}
	c.AddPacket(counters.Packet{Frame: 0, Symbol: 0, IsPilot: true})
	require.True(t, c.ReceivedAllPilots(0))
}

func TestDecodeRetirement(t *testing.T) {
	cfg := testConfig(counters.ModeUplink)
	c := counters.New(cfg)
	c.MarkDecodeDone(0)
	require.Equal(t, uint32(0), c.CurFrame())
	c.MarkDecodeDone(0)
	require.Equal(t, uint32(1), c.CurFrame())
}

// TestWindowInvariantsUnderRandomOrder is a property test covering
// invariants 1 (monotonicity) and 2 (window bound): frames are admitted
// and retired in an arbitrary valid order and cur_frame_ never regresses
// nor permits latest_frame_ to outrun the window.
func TestWindowInvariantsUnderRandomOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := testConfig(counters.ModeUplink)
		c := counters.New(cfg)

		numFrames := rapid.IntRange(1, 40).Draw(rt, "numFrames")
		var lastCur uint32
		for f := 0; f < numFrames; f++ {
			frame := uint32(f)
			if !c.InWindow(frame) {
				continue
			}
			for i := uint32(0); i < cfg.NumDecodeTasks; i++ {
				c.MarkDecodeDone(frame)
			}
			cur := c.CurFrame()
			if cur < lastCur {
				rt.Fatalf("cur_frame regressed: %d -> %d", lastCur, cur)
			}
			lastCur = cur
			if c.LatestFrame()-c.CurFrame() >= cfg.Window && c.LatestFrame() >= c.CurFrame() {
				rt.Fatalf("window bound violated: latest=%d cur=%d window=%d", c.LatestFrame(), c.CurFrame(), cfg.Window)
			}
		}
	})
}

// TestSlotRecyclingZeroesCounters covers invariant 3: after a slot
// retires, every counter for that slot reads zero, matching invariant 2's
// requirement that a newly admitted frame finds its slot's counters at
// zero.
func TestSlotRecyclingZeroesCounters(t *testing.T) {
	cfg := testConfig(counters.ModeUplink)
	cfg.Window = 2
	c := counters.New(cfg)

	for ant := uint32(0); ant < cfg.NumAnt; ant++ {
		require.True(t, c.AddPacket(counters.Packet{Frame: 0, Symbol: 0, IsPilot: true}))
	}
	require.True(t, c.ReceivedAllPilots(0))

	for i := uint32(0); i < cfg.NumDecodeTasks; i++ {
		c.MarkDecodeDone(0)
	}
	require.Equal(t, uint32(1), c.CurFrame())

	require.False(t, c.ReceivedAllPilots(0))
	ok := c.AddPacket(counters.Packet{Frame: 2, Symbol: 0, IsPilot: true})
	require.True(t, ok)

	// Frame 2 reuses slot 0. Its pilot count reaches the threshold after
	// exactly NumAnt packets only if retirement zeroed frame 0's count.
	for ant := uint32(1); ant < cfg.NumAnt; ant++ {
		require.True(t, c.AddPacket(counters.Packet{Frame: 2, Symbol: 0, IsPilot: true}))
	}
	require.True(t, c.ReceivedAllPilots(2))
}
