// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stage

import (
	"code.hybscloud.com/radiosched/doer"
	"code.hybscloud.com/radiosched/dsp"
	"code.hybscloud.com/radiosched/event"
	"code.hybscloud.com/radiosched/tag"
)

// BuildRegistry constructs the full set of Doers for one deployment,
// sharing arena and kernels across every worker — the arena is the
// process-wide per-slot buffer set (§"Data Model"), not per-worker
// state, so every worker registers the same Doer set and any worker may
// run any task kind.
func BuildRegistry(arena *Arena, k dsp.Kernels) *doer.Registry {
	return doer.NewRegistry(
		fftDoer(arena, k),
		csiDoer(arena),
		zfDoer(arena, k),
		demulDoer(arena),
		decodeDoer(arena, k),
		encodeDoer(arena, k),
		precodeDoer(arena),
		ifftDoer(arena, k),
	)
}

func fftDoer(a *Arena, k dsp.Kernels) doer.Doer {
	return doer.Func{
		EventKind: event.KindFFT,
		Run: func(t tag.Tag) event.Event {
			slot, symbol, ant := a.slot(t.Frame()), t.Symbol(), t.Antenna()
			k.FFT(a.rxIQ[slot][symbol][ant], a.fftOut[slot][symbol][ant])
			return event.Event{Kind: event.KindFFT, Tag: t}
		},
	}
}

// csiDoer estimates the channel for one subcarrier block from the pilot
// symbol's FFT output across every antenna. No dsp.Kernels hook exists
// for channel estimation (only PseudoInverse is exposed, for ZF); a
// least-squares estimate against a known pilot is a single copy in this
// simplified channel model (see Arena's doc comment).
func csiDoer(a *Arena) doer.Doer {
	return doer.Func{
		EventKind: event.KindCSI,
		Run: func(t tag.Tag) event.Event {
			slot, sc := a.slot(t.Frame()), t.SCBlock()
			for ant := uint32(0); ant < a.numAnt; ant++ {
				a.csi[slot][sc][ant] = a.fftOut[slot][0][ant][sc]
			}
			return event.Event{Kind: event.KindCSI, Tag: t}
		},
	}
}

func zfDoer(a *Arena, k dsp.Kernels) doer.Doer {
	return doer.Func{
		EventKind: event.KindZF,
		Run: func(t tag.Tag) event.Event {
			slot, sc := a.slot(t.Frame()), t.SCBlock()
			_ = k.PseudoInverse(a.csi[slot][sc], 1, int(a.numAnt), a.zfWeights[slot][sc])
			return event.Event{Kind: event.KindZF, Tag: t}
		},
	}
}

// demulDoer combines every antenna's UL-data FFT bin for one subcarrier
// block with its zero-forcing weight into a single equalized sample.
// The combine itself is plain linear algebra, not a swappable DSP
// kernel, so it's implemented directly here rather than through
// dsp.Kernels.
func demulDoer(a *Arena) doer.Doer {
	return doer.Func{
		EventKind: event.KindDemul,
		Run: func(t tag.Tag) event.Event {
			slot, symbol, sc := a.slot(t.Frame()), t.Symbol(), t.SCBlock()
			var sum complex64
			for ant := uint32(0); ant < a.numAnt; ant++ {
				sum += a.zfWeights[slot][sc][ant] * a.fftOut[slot][symbol][ant][sc]
			}
			a.equalized[slot][symbol][sc] = sum
			return event.Event{Kind: event.KindDemul, Tag: t}
		},
	}
}

// decodeDoer LDPC-decodes one UL-data symbol's equalized subcarrier
// blocks, expressing each complex sample's real and imaginary parts as
// one soft bit each (a simplified LLR proxy — see Arena's doc comment).
func decodeDoer(a *Arena, k dsp.Kernels) doer.Doer {
	return doer.Func{
		EventKind: event.KindDecode,
		Run: func(t tag.Tag) event.Event {
			slot, symbol := a.slot(t.Frame()), t.Symbol()
			soft := make([]float32, 0, 2*a.numSC)
			for sc := uint32(0); sc < a.numSC; sc++ {
				v := a.equalized[slot][symbol][sc]
				soft = append(soft, real(v), imag(v))
			}
			_ = k.Decode(0, 0, 0, soft, a.decoded[slot][symbol])
			return event.Event{Kind: event.KindDecode, Tag: t}
		},
	}
}

// encodeDoer LDPC-encodes one UE's downlink payload for one symbol. The
// MAC payload itself is a supplemented-feature placeholder (deterministic
// bytes derived from the tag): this module's scope is the scheduling
// fabric, not a MAC layer, so there is no real traffic source to draw
// from.
func encodeDoer(a *Arena, k dsp.Kernels) doer.Doer {
	return doer.Func{
		EventKind: event.KindEncode,
		Run: func(t tag.Tag) event.Event {
			slot, symbol, ue := a.slot(t.Frame()), t.Symbol(), t.UE()
			in := a.encodeIn[slot][ue][symbol]
			for i := range in {
				in[i] = byte(uint32(t.Frame())>>uint(i%4) + uint32(ue))
			}
			parity := make([]byte, parityBytes)
			_ = k.Encode(0, 0, 0, in, parity, a.encoded[slot][ue][symbol])
			return event.Event{Kind: event.KindEncode, Tag: t}
		},
	}
}

// precodeDoer combines every UE's encoded downlink payload for one
// subcarrier block, across every downlink symbol, into the broadcast
// precoded stream IFFT will consume. Runs once per subcarrier block per
// frame, matching counters.SharedCounters' precode threshold.
func precodeDoer(a *Arena) doer.Doer {
	return doer.Func{
		EventKind: event.KindPrecode,
		Run: func(t tag.Tag) event.Event {
			slot, sc := a.slot(t.Frame()), t.SCBlock()
			for symbol := a.pilotSym + a.ulDataSym; symbol < a.numSyms; symbol++ {
				var sum complex64
				for ue := uint32(0); ue < a.numUE; ue++ {
					bits := a.encoded[slot][ue][symbol]
					if len(bits) == 0 {
						continue
					}
					byteIdx := sc / 8 % uint32(len(bits))
					bit := (bits[byteIdx] >> (sc % 8)) & 1
					if bit == 1 {
						sum += 1
					} else {
						sum += -1
					}
				}
				a.precoded[slot][symbol][sc] = sum
			}
			return event.Event{Kind: event.KindPrecode, Tag: t}
		},
	}
}

// ifftDoer transforms one antenna's downlink symbol from the combined
// per-subcarrier-block stream (broadcast identically to every antenna —
// see Arena's doc comment) back to time domain.
func ifftDoer(a *Arena, k dsp.Kernels) doer.Doer {
	return doer.Func{
		EventKind: event.KindIFFT,
		Run: func(t tag.Tag) event.Event {
			slot, symbol, ant := a.slot(t.Frame()), t.Symbol(), t.Antenna()
			freq := make([]complex64, len(a.rxIQ[slot][symbol][ant]))
			for sc := uint32(0); sc < a.numSC; sc++ {
				freq[sc] = a.precoded[slot][symbol][sc]
			}
			k.IFFT(freq, a.txIQ[slot][symbol][ant])
			return event.Event{Kind: event.KindIFFT, Tag: t}
		},
	}
}
