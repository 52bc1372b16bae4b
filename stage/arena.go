// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stage wires dsp.Kernels into doer.Doer implementations backed
// by a pre-allocated, per-slot buffer arena (§"Data Model", Buffers):
// exactly one writer per (slot, stage, cell), addressed by decoding the
// task's tag. No cell is allocated on the hot path.
package stage

import "code.hybscloud.com/radiosched/config"

// Arena is the full set of per-slot buffers the pipeline's Doers read
// from and write to. Every buffer is sized once at construction from
// static configuration and indexed by frame slot, never reallocated.
//
// The channel model here is intentionally simplified relative to a real
// baseband: one subcarrier block is treated as exactly one FFT bin, and
// downlink precoding broadcasts the same combined stream to every
// antenna rather than applying a per-antenna precoding matrix. Swapping
// in real per-block grouping or MU-MIMO precoding means changing these
// buffer shapes and the Doers that address them; the counters/gate
// machinery around them does not change.
type Arena struct {
	numAnt    uint32
	numSC     uint32
	numUE     uint32
	numSyms   uint32
	sampsPer  uint32
	window    uint32
	pilotSym  uint32
	ulDataSym uint32

	// rxIQ/fftOut: [slot][symbol][antenna] -> len sampsPer
	rxIQ   [][][][]complex64
	fftOut [][][][]complex64

	// csi/zfWeights: [slot][scBlock] -> len numAnt
	csi       [][][]complex64
	zfWeights [][][]complex64

	// equalized: [slot][symbol][scBlock] one combined sample per UL-data
	// symbol per subcarrier block.
	equalized [][][]complex64

	// decoded: [slot][symbol] -> decoded payload bytes.
	decoded [][][]byte

	// encodeIn/encoded: [slot][ue][symbol] -> MAC/encoded payload bytes.
	encodeIn [][][][]byte
	encoded  [][][][]byte

	// precoded: [slot][symbol][scBlock], broadcast across antennas by
	// IFFT (see type doc).
	precoded [][][]complex64

	// txIQ: [slot][symbol][antenna] -> len sampsPer time-domain samples.
	txIQ [][][][]complex64
}

const (
	codewordBits  = 64 // bits per decode task, sized for the fake LDPC kernel
	payloadBytes  = codewordBits / 8
	parityBytes   = 4
	samplesPerBin = 1
)

// NewArena sizes an Arena from cfg and sampsPerSymbol (the OFDM symbol
// length in time-domain samples, not carried by config.Config because
// it's a radio-front-end concern, not a scheduling one).
func NewArena(cfg config.Config, sampsPerSymbol uint32) *Arena {
	w, ant, sc, ue, syms := cfg.Window, cfg.NumAntennas, cfg.NumSCBlocks, cfg.NumUEs, cfg.Symbols.Total

	a := &Arena{
		numAnt:    ant,
		numSC:     sc,
		numUE:     ue,
		numSyms:   syms,
		sampsPer:  sampsPerSymbol,
		window:    w,
		pilotSym:  cfg.Symbols.PilotCount,
		ulDataSym: cfg.Symbols.ULDataCount,
	}

	a.rxIQ = make4D(w, syms, ant, sampsPerSymbol)
	a.fftOut = make4D(w, syms, ant, sampsPerSymbol)
	a.csi = make3D(w, sc, ant)
	a.zfWeights = make3D(w, sc, ant)
	a.equalized = make3D(w, syms, sc)
	a.precoded = make3D(w, syms, sc)

	a.decoded = make([][][]byte, w)
	a.encodeIn = make([][][][]byte, w)
	a.encoded = make([][][][]byte, w)
	for s := range a.decoded {
		a.decoded[s] = make([][]byte, syms)
		for sym := range a.decoded[s] {
			a.decoded[s][sym] = make([]byte, payloadBytes)
		}
		a.encodeIn[s] = make([][][]byte, ue)
		a.encoded[s] = make([][][]byte, ue)
		for u := range a.encodeIn[s] {
			a.encodeIn[s][u] = make([][]byte, syms)
			a.encoded[s][u] = make([][]byte, syms)
			for sym := range a.encodeIn[s][u] {
				a.encodeIn[s][u][sym] = make([]byte, payloadBytes)
				a.encoded[s][u][sym] = make([]byte, payloadBytes)
			}
		}
	}

	a.txIQ = make4D(w, syms, ant, sampsPerSymbol)

	return a
}

func (a *Arena) slot(frame uint32) uint32 { return frame & (a.window - 1) }

func make3D(a, b, c uint32) [][][]complex64 {
	out := make([][][]complex64, a)
	for i := range out {
		out[i] = make([][]complex64, b)
		for j := range out[i] {
			out[i][j] = make([]complex64, c)
		}
	}
	return out
}

func make4D(a, b, c, d uint32) [][][][]complex64 {
	out := make([][][][]complex64, a)
	for i := range out {
		out[i] = make3D(b, c, d)
	}
	return out
}
