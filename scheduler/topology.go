// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scheduler implements the master: the single-threaded consumer
// of the completion queue that routes each finished task through the
// shared counters' gate predicates and, when a gate opens, enqueues the
// next stage's requests onto the worker pool.
package scheduler

import "code.hybscloud.com/radiosched/config"

// symbolClass identifies what a symbol within a frame carries.
type symbolClass uint8

const (
	classPilot symbolClass = iota
	classULData
	classDownlink
)

// topology is the static per-frame layout derived from config.Config,
// used to classify symbols and size the per-stage fan-out loops without
// re-deriving them from the wire config on every event.
type topology struct {
	numAntennas uint32
	numUEs      uint32
	numSCBlocks uint32

	symTotal  uint32
	numPilot  uint32
	numULData uint32
}

func newTopology(cfg config.Config) topology {
	return topology{
		numAntennas: cfg.NumAntennas,
		numUEs:      cfg.NumUEs,
		numSCBlocks: cfg.NumSCBlocks,
		symTotal:    cfg.Symbols.Total,
		numPilot:    cfg.Symbols.PilotCount,
		numULData:   cfg.Symbols.ULDataCount,
	}
}

// classify reports what kind of symbol the given in-frame symbol index
// is, and, for an uplink-data symbol, its index within the data portion
// (matching counters.Packet.ULDataIdx).
func (t topology) classify(symbol uint32) (class symbolClass, ulDataIdx uint32) {
	switch {
	case symbol < t.numPilot:
		return classPilot, 0
	case symbol < t.numPilot+t.numULData:
		return classULData, symbol - t.numPilot
	default:
		return classDownlink, 0
	}
}

// ulDataIdx converts a raw in-frame symbol index known to be a UL-data
// symbol into its 0-based index within the UL-data portion — the index
// counters.SharedCounters actually keys numDataPkts/demulDone by (see
// counters.Packet.ULDataIdx).
func (t topology) ulDataIdx(symbol uint32) uint32 {
	return symbol - t.numPilot
}

// dlSymbolStart is the first downlink-eligible symbol index in a frame.
func (t topology) dlSymbolStart() uint32 {
	return t.numPilot + t.numULData
}

// dlSymbolCount is the number of downlink-eligible symbols in a frame.
func (t topology) dlSymbolCount() uint32 {
	if t.symTotal <= t.dlSymbolStart() {
		return 0
	}
	return t.symTotal - t.dlSymbolStart()
}
