// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package event defines the typed events that flow through the frame
// scheduler's queues: requests enqueued onto workers and completions
// enqueued back onto the master.
package event

import "code.hybscloud.com/radiosched/tag"

// Kind identifies the stage an Event belongs to. Each Kind appears both as
// a request (enqueued by the scheduler) and as a completion (enqueued by a
// worker's Doer).
type Kind uint8

const (
	KindPacketRX Kind = iota
	KindFFT
	KindCSI
	KindZF
	KindDemul
	KindDecode
	KindEncode
	KindPrecode
	KindIFFT
	KindPacketTX
	KindPacketPilotTX
	KindRC
)

// String returns the event kind's name, for logging.
func (k Kind) String() string {
	switch k {
	case KindPacketRX:
		return "packet_rx"
	case KindFFT:
		return "fft"
	case KindCSI:
		return "csi"
	case KindZF:
		return "zf"
	case KindDemul:
		return "demul"
	case KindDecode:
		return "decode"
	case KindEncode:
		return "encode"
	case KindPrecode:
		return "precode"
	case KindIFFT:
		return "ifft"
	case KindPacketTX:
		return "packet_tx"
	case KindPacketPilotTX:
		return "packet_pilot_tx"
	case KindRC:
		return "rc"
	default:
		return "unknown"
	}
}

// Event is a {kind, tag} pair. It is small enough to fit in a cache line
// and is passed by value through the lock-free queues.
type Event struct {
	Kind Kind
	Tag  tag.Tag
}
