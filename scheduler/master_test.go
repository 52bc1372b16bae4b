// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scheduler_test

import (
	"io"
	"testing"
	"time"

	"code.hybscloud.com/radiosched/config"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/obs"
	"code.hybscloud.com/radiosched/scheduler"
	"code.hybscloud.com/radiosched/session"
	"code.hybscloud.com/radiosched/tag"
	"github.com/stretchr/testify/require"
)

func testLogger() *obs.Logger {
	lvl := obs.LevelError
	return obs.New(obs.Options{Writer: io.Discard, Level: &lvl})
}

// pushCompletion enqueues ev as if a worker or the radio front end had
// produced it, spinning briefly if the queue is momentarily full.
func pushCompletion(t *testing.T, sess *session.State, ev event.Event) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sess.Queues.Completion.Enqueue(&ev) == nil
	}, time.Second, time.Millisecond)
}

func popRequest(t *testing.T, sess *session.State) event.Event {
	t.Helper()
	var got event.Event
	require.Eventually(t, func() bool {
		for _, q := range sess.Queues.Requests {
			if ev, err := q.Dequeue(); err == nil {
				got = ev
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
	return got
}

func popDemul(t *testing.T, sess *session.State) event.Event {
	t.Helper()
	var got event.Event
	require.Eventually(t, func() bool {
		ev, err := sess.Queues.Demul.Dequeue()
		if err != nil {
			return false
		}
		got = ev
		return true
	}, 2*time.Second, time.Millisecond)
	return got
}

func popTX(t *testing.T, sess *session.State) event.Event {
	t.Helper()
	var got event.Event
	require.Eventually(t, func() bool {
		ev, err := sess.Queues.TXDispatch.Dequeue()
		if err != nil {
			return false
		}
		got = ev
		return true
	}, 2*time.Second, time.Millisecond)
	return got
}

// TestMasterDrivesUplinkPipeline exercises the master's event routing
// across every stage of a single uplink frame end to end: RX fans out
// FFT per antenna, pilot FFT completion fans out CSI, CSI fans out ZF,
// ZF (combined with the UL-data symbol's RX) fans out demul onto the
// shared pool, demul fans out decode, and decode retires the frame.
func TestMasterDrivesUplinkPipeline(t *testing.T) {
	cfg := config.Config{
		Window:               8,
		NumAntennas:          1,
		NumUEs:               1,
		NumSCBlocks:          1,
		NumDecodeTasks:       1,
		NumDemodDataRequired: 1,
		Symbols:              config.Symbols{Total: 2, PilotCount: 1, ULDataCount: 1},
		Mode:                 "uplink",
		NUMANodes:            []config.NUMANode{{ID: 0, CPUs: []int{0}}},
	}
	require.NoError(t, cfg.Validate())

	sess := session.New(cfg, testLogger())
	m := scheduler.New(sess, testLogger())
	go m.Run()
	sess.Start()

	const frame = uint32(0)

	// RX: pilot symbol 0, antenna 0.
	pushCompletion(t, sess, event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(frame, 0, 0)})
	fftPilot := popRequest(t, sess)
	require.Equal(t, event.KindFFT, fftPilot.Kind)
	require.Equal(t, frame, fftPilot.Tag.Frame())
	require.Equal(t, uint8(0), fftPilot.Tag.Symbol())

	// RX: UL-data symbol 1, antenna 0.
	pushCompletion(t, sess, event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(frame, 1, 0)})
	fftData := popRequest(t, sess)
	require.Equal(t, event.KindFFT, fftData.Kind)
	require.Equal(t, uint8(1), fftData.Tag.Symbol())

	// FFT done for the pilot symbol fans out CSI.
	pushCompletion(t, sess, event.Event{Kind: event.KindFFT, Tag: fftPilot.Tag})
	csi := popRequest(t, sess)
	require.Equal(t, event.KindCSI, csi.Kind)

	// FFT done for the UL-data symbol: demul isn't ready yet (ZF pending).
	pushCompletion(t, sess, event.Event{Kind: event.KindFFT, Tag: fftData.Tag})

	// CSI done fans out ZF.
	pushCompletion(t, sess, event.Event{Kind: event.KindCSI, Tag: csi.Tag})
	zf := popRequest(t, sess)
	require.Equal(t, event.KindZF, zf.Kind)

	// ZF done, combined with the already-arrived UL-data FFT, fans out
	// demul onto the shared pool.
	pushCompletion(t, sess, event.Event{Kind: event.KindZF, Tag: zf.Tag})
	demul := popDemul(t, sess)
	require.Equal(t, event.KindDemul, demul.Kind)
	require.Equal(t, uint8(1), demul.Tag.Symbol())

	// Demul done fans out decode.
	pushCompletion(t, sess, event.Event{Kind: event.KindDemul, Tag: demul.Tag})
	decode := popRequest(t, sess)
	require.Equal(t, event.KindDecode, decode.Kind)

	// Decode done retires the frame.
	pushCompletion(t, sess, event.Event{Kind: event.KindDecode, Tag: decode.Tag})
	require.Eventually(t, func() bool {
		return sess.Counters.CurFrame() == frame+1
	}, 2*time.Second, time.Millisecond)

	sess.Shutdown()
}

// TestMasterDrivesDownlinkPipeline exercises the master's routing across
// the downlink chain: any RX fans out encode per downlink symbol and UE,
// encode completions fan out precode once every UE's data for a symbol
// has arrived and every downlink symbol has reached that point, precode
// fans out IFFT per antenna, and IFFT completion enqueues a TX dispatch
// entry tagged with that antenna — the tag radio.FrontEnd.serviceTX later
// routes on instead of the dequeuing front end's own radio id.
func TestMasterDrivesDownlinkPipeline(t *testing.T) {
	cfg := config.Config{
		Window:         8,
		NumAntennas:    2,
		NumUEs:         1,
		NumSCBlocks:    1,
		NumDecodeTasks: 1,
		Symbols:        config.Symbols{Total: 3, PilotCount: 1, ULDataCount: 1},
		Mode:           "downlink",
		NUMANodes:      []config.NUMANode{{ID: 0, CPUs: []int{0}}},
	}
	require.NoError(t, cfg.Validate())

	sess := session.New(cfg, testLogger())
	m := scheduler.New(sess, testLogger())
	go m.Run()
	sess.Start()

	const frame = uint32(0)
	const dlSymbol = uint8(2) // PilotCount(1) + ULDataCount(1)

	// Any RX packet marks MAC inputs present and fans out one encode
	// request per downlink symbol and UE.
	pushCompletion(t, sess, event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(frame, 0, 0)})
	_ = popRequest(t, sess) // the FFT request this RX also fans out
	encode := popRequest(t, sess)
	require.Equal(t, event.KindEncode, encode.Kind)
	require.Equal(t, dlSymbol, encode.Tag.Symbol())
	require.Equal(t, uint16(0), encode.Tag.UE())

	// Encode completion for the sole UE satisfies the downlink symbol and
	// fans out precode (one request per subcarrier block).
	pushCompletion(t, sess, event.Event{Kind: event.KindEncode, Tag: encode.Tag})
	precode := popRequest(t, sess)
	require.Equal(t, event.KindPrecode, precode.Kind)
	require.Equal(t, frame, precode.Tag.Frame())

	// Precode completion for the sole subcarrier block fans out one IFFT
	// request per antenna for every downlink symbol.
	pushCompletion(t, sess, event.Event{Kind: event.KindPrecode, Tag: precode.Tag})
	seen := map[uint16]bool{}
	for i := 0; i < int(cfg.NumAntennas); i++ {
		ifft := popRequest(t, sess)
		require.Equal(t, event.KindIFFT, ifft.Kind)
		require.Equal(t, dlSymbol, ifft.Tag.Symbol())
		seen[ifft.Tag.Antenna()] = true

		// Each IFFT completion enqueues a TX dispatch entry tagged with
		// its own antenna, not a fixed one.
		pushCompletion(t, sess, event.Event{Kind: event.KindIFFT, Tag: ifft.Tag})
		tx := popTX(t, sess)
		require.Equal(t, event.KindPacketTX, tx.Kind)
		require.Equal(t, ifft.Tag.Antenna(), tx.Tag.Antenna())
		require.Equal(t, dlSymbol, tx.Tag.Symbol())
	}
	require.Len(t, seen, int(cfg.NumAntennas))

	require.Eventually(t, func() bool {
		return sess.Counters.CurFrame() == frame+1
	}, 2*time.Second, time.Millisecond)

	sess.Shutdown()
}

// TestMasterBackpressure exercises the admission signal described in
// §4.5: once the outstanding span between the latest observed frame and
// the first not-yet-retired frame reaches W-1, the master clears
// AdmitRX so the front end can stop doing receive-side work for frames
// it knows will be rejected as overrun.
func TestMasterBackpressure(t *testing.T) {
	cfg := config.Default() // Window 8, NumAntennas 4 -> a single packet never completes a frame
	sess := session.New(cfg, testLogger())
	m := scheduler.New(sess, testLogger())
	go m.Run()
	sess.Start()

	for frame := uint32(0); frame < cfg.Window-2; frame++ {
		pushCompletion(t, sess, event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(frame, 0, 0)})
		popRequest(t, sess) // drain the FFT request this RX fans out
	}
	require.Eventually(t, func() bool { return sess.Counters.LatestFrame() == cfg.Window-3 }, 2*time.Second, time.Millisecond)
	require.True(t, sess.AdmitRX())

	pushCompletion(t, sess, event.Event{Kind: event.KindPacketRX, Tag: tag.MakeAntennaTag(cfg.Window-1, 0, 0)})
	popRequest(t, sess)
	require.Eventually(t, func() bool { return !sess.AdmitRX() }, 2*time.Second, time.Millisecond)

	sess.Shutdown()
}
