// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stage

import "code.hybscloud.com/radiosched/tag"

// TXSource returns a radio.TXSource reading a's precoded-and-inverse-
// transformed TX buffer directly, so the front end never copies a
// sample it doesn't have to.
func (a *Arena) TXSource() func(t tag.Tag) []complex64 {
	return func(t tag.Tag) []complex64 {
		slot, symbol, ant := a.slot(t.Frame()), t.Symbol(), t.Antenna()
		return a.txIQ[slot][symbol][ant]
	}
}

// RXSink returns the raw-IQ buffer the radio front end should decode a
// received symbol's packet payload into directly, keyed by the same tag
// it will later push as a PacketRX completion.
func (a *Arena) RXSink(frame uint32, symbol uint8, antenna uint16) []complex64 {
	return a.rxIQ[a.slot(frame)][symbol][antenna]
}
