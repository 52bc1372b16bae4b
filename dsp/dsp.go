// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dsp declares the pure-function DSP kernel interface consumed by
// the scheduler's Doers. The kernels themselves — LDPC encode/decode,
// rate matching, FFT, matrix pseudo-inverse, scrambling, modulation
// mapping — are non-goals of this module; this package only fixes the
// seam so Doers can be wired against either a real DSP backend or the
// deterministic fakes below.
package dsp

import "errors"

// ErrShortBuffer is returned by a kernel when an input or output slice is
// smaller than the kernel requires.
var ErrShortBuffer = errors.New("dsp: buffer too short")

// LDPCEncoder produces parity bits and the final encoded codeword for one
// codeblock. base_graph/expansion_factor/num_rows parameterize the LDPC
// code; no hidden state.
type LDPCEncoder func(baseGraph, expansionFactor, numRows int, input []byte, parityOut, encodedOut []byte) error

// LDPCDecoder is the symmetric decode kernel, taking soft (LLR) input
// instead of hard bits.
type LDPCDecoder func(baseGraph, expansionFactor, numRows int, softInput []float32, decodedOut []byte) error

// FFT transforms one OFDM symbol's time-domain samples to the frequency
// domain. len(out) must equal len(in).
type FFT func(in, out []complex64)

// PseudoInverse computes the Moore-Penrose pseudo-inverse of the channel
// state matrix csi (rows x cols, column-major) into out, used by the
// zero-forcing equalizer.
type PseudoInverse func(csi []complex64, rows, cols int, out []complex64) error

// Kernels bundles one complete DSP backend. A worker's Doers are
// constructed against a Kernels value, never against package-level
// functions, so test code can substitute Fake() without touching
// production wiring.
type Kernels struct {
	Encode        LDPCEncoder
	Decode        LDPCDecoder
	FFT           FFT
	IFFT          FFT
	PseudoInverse PseudoInverse
}
