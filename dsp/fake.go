// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dsp

// Fake returns a deterministic, loopback-style Kernels implementation
// suitable for exercising the scheduler and counters without a real DSP
// backend. It performs no actual signal processing: FFT/IFFT are the
// identity transform, LDPC encode/decode pass bits through unchanged.
// Invariant 6 (round-trip over emulated radios) depends on this identity
// property to assert bitwise equality end to end.
func Fake() Kernels {
	return Kernels{
		Encode: func(_, _, _ int, input []byte, parityOut, encodedOut []byte) error {
			if len(encodedOut) < len(input) {
				return ErrShortBuffer
			}
			copy(encodedOut, input)
			for i := range parityOut {
				parityOut[i] = 0
			}
			return nil
		},
		Decode: func(_, _, _ int, softInput []float32, decodedOut []byte) error {
			n := len(softInput) / 8
			if len(decodedOut) < n {
				return ErrShortBuffer
			}
			for i := 0; i < n; i++ {
				var b byte
				for bit := 0; bit < 8; bit++ {
					if softInput[i*8+bit] > 0 {
						b |= 1 << uint(bit)
					}
				}
				decodedOut[i] = b
			}
			return nil
		},
		FFT: func(in, out []complex64) {
			copy(out, in)
		},
		IFFT: func(in, out []complex64) {
			copy(out, in)
		},
		PseudoInverse: func(csi []complex64, rows, cols int, out []complex64) error {
			if len(out) < len(csi) {
				return ErrShortBuffer
			}
			for i, v := range csi {
				if v == 0 {
					out[i] = 0
					continue
				}
				out[i] = complex64(1) / v
			}
			return nil
		},
	}
}
