// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dsp_test

import (
	"testing"

	"code.hybscloud.com/radiosched/dsp"
	"github.com/stretchr/testify/require"
)

func TestFakeFFTIsIdentity(t *testing.T) {
	k := dsp.Fake()
	in := []complex64{1 + 2i, 3 - 1i, 0, 5}
	out := make([]complex64, len(in))
	k.FFT(in, out)
	require.Equal(t, in, out)
}

func TestFakeEncodeDecodeRoundTrip(t *testing.T) {
	k := dsp.Fake()
	input := []byte{0xAB, 0xCD}
	parity := make([]byte, 4)
	encoded := make([]byte, len(input))
	require.NoError(t, k.Encode(0, 0, 0, input, parity, encoded))
	require.Equal(t, input, encoded)

	soft := make([]float32, len(encoded)*8)
	for i, b := range encoded {
		for bit := 0; bit < 8; bit++ {
			soft[i*8+bit] = -1
			if b>>uint(bit)&1 == 1 {
				soft[i*8+bit] = 1
			}
		}
	}
	decoded := make([]byte, len(input))
	require.NoError(t, k.Decode(0, 0, 0, soft, decoded))
	require.Equal(t, input, decoded)
}

func TestFakeEncodeShortBuffer(t *testing.T) {
	k := dsp.Fake()
	err := k.Encode(0, 0, 0, []byte{1, 2, 3}, nil, make([]byte, 1))
	require.ErrorIs(t, err, dsp.ErrShortBuffer)
}

func TestFakePseudoInverse(t *testing.T) {
	k := dsp.Fake()
	csi := []complex64{2, 0, 4}
	out := make([]complex64, len(csi))
	require.NoError(t, k.PseudoInverse(csi, 1, 3, out))
	require.Equal(t, complex64(0.5), out[0])
	require.Equal(t, complex64(0), out[1])
	require.Equal(t, complex64(0.25), out[2])
}
