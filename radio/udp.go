// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radio

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TxFlags encode per-symbol TX timing hints, matching the original's
// flags_tx_pilot/flags_tx_symbol encoding.
type TxFlags uint8

const (
	// HasTime marks a TX burst as carrying an explicit timestamp.
	HasTime TxFlags = 1
	// EndBurst marks the last symbol of a TX burst.
	EndBurst TxFlags = 2
)

// RadioDriver is the contract the core consumes to move IQ samples
// to/from a radio, emulated or real.
type RadioDriver interface {
	Recv(ctx context.Context, radioID int, buffers [][]complex64, numSamps int) (n int, timestamp uint64, err error)
	Send(ctx context.Context, radioID int, buffers [][]complex64, numSamps int, flags TxFlags, timestamp uint64) (n int, err error)
	Triggers(radioID int) (int, error)
	Start() error
	Stop() error
}

// readDeadlineStep bounds how long a single Read blocks before the
// driver re-checks ctx.Done(), so Recv/Send remain cancellable without
// waiting out a long or absent socket deadline.
const readDeadlineStep = 100 * time.Millisecond

// UDPEndpoint names the local listen address and remote send address for
// one emulated radio.
type UDPEndpoint struct {
	RadioID    int
	ListenAddr string // e.g. "127.0.0.1:9000", one UDP server per radio
	RemoteAddr string // e.g. "127.0.0.1:9100", this radio's RRU peer
}

// UDPDriver implements RadioDriver over one net.UDPConn pair per radio,
// grounded on RadioTxRx's software-framer path (udp_servers_/udp_clients_,
// RecvEnqueue, DequeueSend): each radio gets its own listening server
// socket for RX and a connected client socket for TX.
type UDPDriver struct {
	sampsPerSymbol int
	cellID         uint16
	endpoints      []UDPEndpoint

	servers map[int]*net.UDPConn
	clients map[int]*net.UDPConn

	rxBuf []byte
	txBuf []byte
}

// NewUDPDriver builds a driver for the given endpoints. Sockets are not
// opened until Start.
func NewUDPDriver(sampsPerSymbol int, cellID uint16, endpoints []UDPEndpoint) *UDPDriver {
	return &UDPDriver{
		sampsPerSymbol: sampsPerSymbol,
		cellID:         cellID,
		endpoints:      append([]UDPEndpoint(nil), endpoints...),
		servers:        make(map[int]*net.UDPConn, len(endpoints)),
		clients:        make(map[int]*net.UDPConn, len(endpoints)),
		rxBuf:          make([]byte, PacketLength(sampsPerSymbol)),
		txBuf:          make([]byte, PacketLength(sampsPerSymbol)),
	}
}

// Start opens one listening server socket and one connected client
// socket per configured radio.
func (d *UDPDriver) Start() error {
	for _, ep := range d.endpoints {
		laddr, err := net.ResolveUDPAddr("udp", ep.ListenAddr)
		if err != nil {
			return fmt.Errorf("radio: resolving listen addr %s: %w", ep.ListenAddr, err)
		}
		server, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return fmt.Errorf("radio: listening on %s: %w", ep.ListenAddr, err)
		}
		d.servers[ep.RadioID] = server

		raddr, err := net.ResolveUDPAddr("udp", ep.RemoteAddr)
		if err != nil {
			return fmt.Errorf("radio: resolving remote addr %s: %w", ep.RemoteAddr, err)
		}
		client, err := net.DialUDP("udp", nil, raddr)
		if err != nil {
			return fmt.Errorf("radio: dialing %s: %w", ep.RemoteAddr, err)
		}
		d.clients[ep.RadioID] = client
	}
	return nil
}

// Stop closes every socket opened by Start.
func (d *UDPDriver) Stop() error {
	var firstErr error
	for _, c := range d.servers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range d.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Recv blocks until one full symbol's packet arrives for radioID or ctx
// is cancelled, decoding its IQ payload into buffers[0][:numSamps].
// Grounded on RecvEnqueue: a short or oversized packet is a hard error
// (the original throws); a clean read populates exactly one symbol.
func (d *UDPDriver) Recv(ctx context.Context, radioID int, buffers [][]complex64, numSamps int) (n int, timestamp uint64, err error) {
	conn, ok := d.servers[radioID]
	if !ok {
		return 0, 0, fmt.Errorf("radio: no server socket for radio %d", radioID)
	}
	if len(buffers) == 0 || len(buffers[0]) < numSamps {
		return 0, 0, fmt.Errorf("radio: recv buffer too small for %d samples", numSamps)
	}

	want := PacketLength(numSamps)
	// One spare byte lets an oversized datagram read back as nb > want
	// instead of being truncated to exactly want.
	if len(d.rxBuf) < want+1 {
		d.rxBuf = make([]byte, want+1)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadlineStep))
		nb, _, err := conn.ReadFromUDP(d.rxBuf[:want+1])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return 0, 0, fmt.Errorf("radio: recv failed on radio %d: %w", radioID, err)
		}
		if nb != want {
			return 0, 0, fmt.Errorf("radio: bad packet size on radio %d: got %d want %d", radioID, nb, want)
		}
		hdr, err := DecodePacket(d.rxBuf[:want], buffers[0][:numSamps])
		if err != nil {
			return 0, 0, err
		}
		timestamp = uint64(hdr.FrameID)<<32 | uint64(hdr.SymbolID)<<16
		return numSamps, timestamp, nil
	}
}

// Send encodes buffers[0][:numSamps] and writes it to radioID's peer.
// Grounded on DequeueSend: one UDP datagram per symbol, header carrying
// frame/symbol/cell/ant identity so the receiving emulated radio can
// demultiplex without a shared clock.
func (d *UDPDriver) Send(ctx context.Context, radioID int, buffers [][]complex64, numSamps int, flags TxFlags, timestamp uint64) (n int, err error) {
	conn, ok := d.clients[radioID]
	if !ok {
		return 0, fmt.Errorf("radio: no client socket for radio %d", radioID)
	}
	if len(buffers) == 0 || len(buffers[0]) < numSamps {
		return 0, fmt.Errorf("radio: send buffer too small for %d samples", numSamps)
	}

	want := PacketLength(numSamps)
	if len(d.txBuf) < want {
		d.txBuf = make([]byte, want)
	}

	hdr := PacketHeader{
		FrameID:  uint32(timestamp >> 32),
		SymbolID: uint16(timestamp >> 16),
		CellID:   d.cellID,
		AntID:    uint16(radioID),
	}
	if err := EncodePacket(hdr, buffers[0][:numSamps], d.txBuf[:want]); err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	nb, err := conn.Write(d.txBuf[:want])
	if err != nil {
		return 0, fmt.Errorf("radio: send failed on radio %d: %w", radioID, err)
	}
	if nb != want {
		return 0, fmt.Errorf("radio: short write on radio %d: wrote %d want %d", radioID, nb, want)
	}
	return numSamps, nil
}

// LocalAddr reports the actual listen address of radioID's server
// socket, useful when ListenAddr used an ephemeral port (":0").
func (d *UDPDriver) LocalAddr(radioID int) net.Addr {
	conn, ok := d.servers[radioID]
	if !ok {
		return nil
	}
	return conn.LocalAddr()
}

// Triggers is not meaningful for UDP emulated radios (it reports
// hardware trigger counters on real SDR front ends); it always reports
// zero triggers with no error.
func (d *UDPDriver) Triggers(radioID int) (int, error) {
	return 0, nil
}
