// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tag implements the compact 64-bit task identifiers that flow
// between the scheduler and the worker pool. A Tag is the sole inter-stage
// reference: every buffer cell is addressed by decoding one.
package tag

// Tag is an opaque packed 64-bit task identifier. Tags are value types:
// cheap to copy, comparable by ==, and safe to pass through a queue slot
// without indirection.
//
// Bit layout, high to low:
//
//	[63:40] frame   (24 bits)
//	[39:32] symbol  (8 bits)
//	[31:22] field1  (10 bits) — UE id, antenna id, or subcarrier block
//	[21:12] field2  (10 bits) — codeblock index, only set by MakeCBTag
//	[11:0]  reserved
type Tag uint64

const (
	frameBits  = 24
	symbolBits = 8
	fieldBits  = 10

	frameShift  = 64 - frameBits
	symbolShift = frameShift - symbolBits
	field1Shift = symbolShift - fieldBits
	field2Shift = field1Shift - fieldBits

	frameMask  = uint64(1)<<frameBits - 1
	symbolMask = uint64(1)<<symbolBits - 1
	fieldMask  = uint64(1)<<fieldBits - 1
)

// MaxFrame is the largest frame id a Tag can carry.
const MaxFrame = 1<<frameBits - 1

// MaxField is the largest UE/antenna/subcarrier-block/codeblock index a Tag
// can carry.
const MaxField = fieldMask

func pack(frame uint32, symbol uint8, field1, field2 uint16) Tag {
	return Tag(uint64(frame)&frameMask<<frameShift |
		uint64(symbol)&symbolMask<<symbolShift |
		uint64(field1)&fieldMask<<field1Shift |
		uint64(field2)&fieldMask<<field2Shift)
}

// MakeFrameTag builds a Tag naming only a frame and symbol, used for
// decode events and for the scheduler's per-frame dispatch keys.
func MakeFrameTag(frame uint32, symbol uint8) Tag {
	return pack(frame, symbol, 0, 0)
}

// MakeAntennaTag builds a Tag naming a frame, symbol, and antenna —
// used by PacketRX, FFT, IFFT and TX events.
func MakeAntennaTag(frame uint32, symbol uint8, antenna uint16) Tag {
	return pack(frame, symbol, antenna, 0)
}

// MakeUETag builds a Tag naming a frame, symbol, and UE — used by encode
// events.
func MakeUETag(frame uint32, symbol uint8, ue uint16) Tag {
	return pack(frame, symbol, ue, 0)
}

// MakeCBTag builds a Tag naming a frame, symbol, UE, and codeblock index.
// No stage in this module issues codeblock-level events; decode events
// carry a MakeFrameTag.
func MakeCBTag(frame uint32, symbol uint8, ue uint16, cb uint16) Tag {
	return pack(frame, symbol, ue, cb)
}

// MakeSCBlockTag builds a Tag naming a frame, symbol, and subcarrier
// block — used by CSI, ZF, demul, and precode events.
func MakeSCBlockTag(frame uint32, symbol uint8, scBlock uint16) Tag {
	return pack(frame, symbol, scBlock, 0)
}

// Frame returns the frame id encoded in the tag.
func (t Tag) Frame() uint32 {
	return uint32(uint64(t) >> frameShift & frameMask)
}

// Symbol returns the symbol id encoded in the tag.
func (t Tag) Symbol() uint8 {
	return uint8(uint64(t) >> symbolShift & symbolMask)
}

// Antenna returns the antenna id encoded in the tag's first field slot.
func (t Tag) Antenna() uint16 {
	return t.field1()
}

// UE returns the UE id encoded in the tag's first field slot.
func (t Tag) UE() uint16 {
	return t.field1()
}

// SCBlock returns the subcarrier block index encoded in the tag's first
// field slot.
func (t Tag) SCBlock() uint16 {
	return t.field1()
}

// CB returns the codeblock index encoded in the tag's second field slot.
func (t Tag) CB() uint16 {
	return t.field2()
}

// Slot returns the frame-window slot (frame mod w) for the tag's frame id.
// w must be a power of two.
func (t Tag) Slot(w uint32) uint32 {
	return t.Frame() & (w - 1)
}

func (t Tag) field1() uint16 {
	return uint16(uint64(t) >> field1Shift & fieldMask)
}

func (t Tag) field2() uint16 {
	return uint16(uint64(t) >> field2Shift & fieldMask)
}
