// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package counters

// RetireMode selects which completion path advances the frame window.
// The source tracks both an uplink path (decode_done) and a downlink path
// (precode_done) that can each independently retire a frame slot; this
// implementation treats them as mutually exclusive per deployment.
type RetireMode uint8

const (
	// ModeUplink retires a slot when its decode counter reaches threshold.
	ModeUplink RetireMode = iota
	// ModeDownlink retires a slot when its precode counter reaches threshold.
	ModeDownlink
	// ModeTestFastRetire retires a slot as soon as every packet for the
	// frame has arrived, bypassing decode/precode entirely. Mirrors the
	// original's test_mode >= 2 fast path; useful for exercising RX and
	// counter machinery in isolation from DSP-kernel stages.
	ModeTestFastRetire
)

// Config sizes a SharedCounters instance. All counts are derived from
// static topology, not discovered at runtime.
type Config struct {
	// Window is the sliding window width W. Must be a power of two.
	Window uint32
	// MaxSymbols bounds the per-frame symbol index used to size
	// per-symbol counter arrays.
	MaxSymbols uint32
	// NumAnt is the number of antennas (num_pkts_per_symbol_).
	NumAnt uint32
	// NumPilotSym is the number of pilot symbols per frame.
	NumPilotSym uint32
	// NumULDataSym is the number of uplink-data symbols per frame.
	NumULDataSym uint32
	// NumSCBlocks is the number of subcarrier blocks (CSI/ZF/precode
	// threshold, and demul-per-symbol threshold).
	NumSCBlocks uint32
	// NumUE is the number of served user equipments.
	NumUE uint32
	// NumDecodeTasks is the decode threshold per frame: derived from UE
	// count times decode threads per UE, or from NumSCBlocks in test
	// mode, per the source's num_decode_tasks_per_frame_ constructor.
	NumDecodeTasks uint32
	// NumDemodDataRequired is the number of collaborating compute nodes
	// whose demod data must arrive before decode may run; 1 for a
	// single-node deployment.
	NumDemodDataRequired uint32
	// Mode selects the active retirement path.
	Mode RetireMode
}

func (c Config) numPktsPerFrameThreshold() uint32 {
	return c.NumAnt * (c.NumPilotSym + c.NumULDataSym)
}

func (c Config) numPilotPktsThreshold() uint32 {
	return c.NumAnt * c.NumPilotSym
}
