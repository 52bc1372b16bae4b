// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package radio implements the UDP emulated-radio transport and the
// software-framer beacon synchronization state machine for the RX/TX
// front end. Hardware SDR drivers are out of scope; any transport
// satisfying RadioDriver can drive the Sync state machine in this
// package.
package radio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the fixed packet header length in bytes: frame_id (4),
// symbol_id (2), cell_id (2), ant_id (2), reserved (2).
const HeaderSize = 12

// sampleScale converts between the driver's normalized complex64 IQ
// samples (real/imag in [-1, 1]) and the wire format's int16 fixed-point
// representation, matching the original's 32768.0 scale factor.
const sampleScale = 32768.0

// PacketHeader is the fixed header preceding every symbol's IQ payload,
// matching the original's Packet{frame_id, symbol_id, cell_id, ant_id}.
type PacketHeader struct {
	FrameID  uint32
	SymbolID uint16
	CellID   uint16
	AntID    uint16
}

// PacketLength returns the total wire size of a packet carrying
// sampsPerSymbol complex IQ samples, each encoded as two int16s.
func PacketLength(sampsPerSymbol int) int {
	return HeaderSize + sampsPerSymbol*4
}

// EncodePacket writes hdr and iq into buf, big-endian, per the wire
// format. buf must be at least PacketLength(len(iq)) bytes.
func EncodePacket(hdr PacketHeader, iq []complex64, buf []byte) error {
	need := PacketLength(len(iq))
	if len(buf) < need {
		return fmt.Errorf("radio: packet buffer too small: have %d, need %d", len(buf), need)
	}
	binary.BigEndian.PutUint32(buf[0:4], hdr.FrameID)
	binary.BigEndian.PutUint16(buf[4:6], hdr.SymbolID)
	binary.BigEndian.PutUint16(buf[6:8], hdr.CellID)
	binary.BigEndian.PutUint16(buf[8:10], hdr.AntID)
	binary.BigEndian.PutUint16(buf[10:12], 0) // reserved

	off := HeaderSize
	for _, s := range iq {
		re := min(clampSample(real(s))*sampleScale, math.MaxInt16)
		im := min(clampSample(imag(s))*sampleScale, math.MaxInt16)
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(int16(re)))
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(int16(im)))
		off += 4
	}
	return nil
}

// DecodePacket reads a header and numSamps IQ samples from buf into iq,
// which must have length numSamps.
func DecodePacket(buf []byte, iq []complex64) (PacketHeader, error) {
	need := PacketLength(len(iq))
	if len(buf) < need {
		return PacketHeader{}, fmt.Errorf("radio: packet too short: have %d, need %d", len(buf), need)
	}
	hdr := PacketHeader{
		FrameID:  binary.BigEndian.Uint32(buf[0:4]),
		SymbolID: binary.BigEndian.Uint16(buf[4:6]),
		CellID:   binary.BigEndian.Uint16(buf[6:8]),
		AntID:    binary.BigEndian.Uint16(buf[8:10]),
	}

	off := HeaderSize
	for i := range iq {
		re := int16(binary.BigEndian.Uint16(buf[off : off+2]))
		im := int16(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		iq[i] = complex(float32(re)/sampleScale, float32(im)/sampleScale)
		off += 4
	}
	return hdr, nil
}

// clampSample guards against a normalized sample outside [-1, 1], which
// would otherwise wrap silently on the int16 cast.
func clampSample(v float32) float32 {
	return float32(math.Max(-1, math.Min(1, float64(v))))
}
