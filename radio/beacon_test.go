// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radio_test

import (
	"testing"

	"code.hybscloud.com/radiosched/radio"
	"github.com/stretchr/testify/require"
)

func constantDetector(index int, ok bool) radio.BeaconDetector {
	return func(samples []complex64) (int, bool) { return index, ok }
}

func TestSyncInitialDetection(t *testing.T) {
	const beaconLen = 16
	const zeroPrefix = 0
	const beaconOffset = 137

	s := radio.NewSync(constantDetector(beaconOffset, true), beaconLen, zeroPrefix)
	require.Equal(t, radio.Unsynced, s.State())

	const rxTime = uint64(555_000)
	samples := make([]complex64, 256)
	require.True(t, s.TryInitialSync(samples, rxTime))

	require.Equal(t, radio.Synced, s.State())
	require.Equal(t, beaconOffset-beaconLen-zeroPrefix, s.RxOffset())
	require.Equal(t, rxTime, s.Time0())
}

func TestSyncInitialDetectionRetriesUntilFound(t *testing.T) {
	s := radio.NewSync(constantDetector(0, false), 16, 0)
	require.False(t, s.TryInitialSync(make([]complex64, 32), 10))
	require.Equal(t, radio.Unsynced, s.State())
}

func TestSyncAlreadySyncedIsNoop(t *testing.T) {
	s := radio.NewSync(constantDetector(100, true), 16, 0)
	require.True(t, s.TryInitialSync(make([]complex64, 32), 1))
	offsetBefore := s.RxOffset()

	// A detector that would compute a different offset must not be
	// consulted once already synced.
	s.Detect = constantDetector(999, true)
	require.True(t, s.TryInitialSync(make([]complex64, 32), 2))
	require.Equal(t, offsetBefore, s.RxOffset())
	require.Equal(t, uint64(1), s.Time0())
}

func TestSyncResyncDrift(t *testing.T) {
	const beaconLen = 16
	const zeroPrefix = 0

	s := radio.NewSync(constantDetector(beaconLen+zeroPrefix, true), beaconLen, zeroPrefix)
	require.True(t, s.TryInitialSync(make([]complex64, 64), 1000))
	require.Equal(t, 0, s.RxOffset())

	require.True(t, s.ShouldResync(1000))

	// Shifted by +8 relative to the aligned position.
	s.Detect = constantDetector(beaconLen+zeroPrefix+8, true)
	offset, ok := s.Resync(make([]complex64, 32))
	require.True(t, ok)
	require.Equal(t, 8, offset)
	require.Equal(t, uint64(1008), s.Time0())
}

func TestSyncResyncExhaustion(t *testing.T) {
	s := radio.NewSync(constantDetector(0, true), 16, 0)
	s.ResyncRetryMax = 2
	s.Detect = constantDetector(0, false)

	for i := 0; i < 2; i++ {
		_, ok := s.Resync(make([]complex64, 8))
		require.False(t, ok)
		require.False(t, s.ResyncExhausted())
	}
	_, ok := s.Resync(make([]complex64, 8))
	require.False(t, ok)
	require.True(t, s.ResyncExhausted())
}

func TestSyncResyncSuccessResetsFailureCount(t *testing.T) {
	s := radio.NewSync(constantDetector(0, false), 16, 0)
	s.ResyncRetryMax = 1
	_, _ = s.Resync(make([]complex64, 8))

	s.Detect = constantDetector(16, true)
	_, ok := s.Resync(make([]complex64, 8))
	require.True(t, ok)
	require.False(t, s.ResyncExhausted())
}

func TestShouldResync(t *testing.T) {
	s := radio.NewSync(constantDetector(0, true), 16, 0)
	require.False(t, s.ShouldResync(0))
	require.False(t, s.ShouldResync(999))
	require.True(t, s.ShouldResync(1000))
	require.True(t, s.ShouldResync(2000))

	s.ResyncInterval = 0
	require.False(t, s.ShouldResync(1000))
}
