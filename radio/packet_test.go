// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radio_test

import (
	"testing"

	"code.hybscloud.com/radiosched/radio"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	hdr := radio.PacketHeader{FrameID: 42, SymbolID: 3, CellID: 1, AntID: 2}
	iq := []complex64{
		complex(float32(0.5), float32(-0.25)),
		complex(float32(-1), float32(1)),
		complex(float32(0), float32(0)),
	}

	buf := make([]byte, radio.PacketLength(len(iq)))
	require.NoError(t, radio.EncodePacket(hdr, iq, buf))

	got := make([]complex64, len(iq))
	gotHdr, err := radio.DecodePacket(buf, got)
	require.NoError(t, err)
	require.Equal(t, hdr, gotHdr)

	for i := range iq {
		require.InDelta(t, real(iq[i]), real(got[i]), 1.0/32768.0)
		require.InDelta(t, imag(iq[i]), imag(got[i]), 1.0/32768.0)
	}
}

func TestEncodePacketBufferTooSmall(t *testing.T) {
	hdr := radio.PacketHeader{}
	iq := make([]complex64, 4)
	buf := make([]byte, radio.PacketLength(len(iq))-1)
	require.Error(t, radio.EncodePacket(hdr, iq, buf))
}

func TestDecodePacketTooShort(t *testing.T) {
	buf := make([]byte, radio.HeaderSize-1)
	out := make([]complex64, 1)
	_, err := radio.DecodePacket(buf, out)
	require.Error(t, err)
}

func TestPacketLength(t *testing.T) {
	require.Equal(t, radio.HeaderSize, radio.PacketLength(0))
	require.Equal(t, radio.HeaderSize+4*16, radio.PacketLength(16))
}
