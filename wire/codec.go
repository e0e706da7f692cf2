// Package wire implements the routing update datagram format.
//
// A packet is a fixed big-endian layout:
//
//	entry count  uint16
//	sender id    uint16
//	sender ipv4  4 bytes
//	sender port  uint16
//	entries      count x { destination id uint16 | cost uint16 }
//
// Unreachable destinations are carried explicitly with cost 0xFFFF
// rather than omitted, so a receiver can tell "explicitly unreachable"
// from "never heard of".
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
)

const (
	headerLen = 10
	entryLen  = 4
)

// ErrDecode is the sentinel wrapped by every decode failure.
var ErrDecode = errors.New("malformed routing packet")

// Packet is one decoded routing update.
type Packet struct {
	SenderId   state.NodeId
	SenderAddr netip.AddrPort
	Vector     map[state.NodeId]state.Cost
}

// Encode serialises the packet. Entries are written in ascending
// destination order so identical vectors produce identical bytes.
func Encode(p Packet) ([]byte, error) {
	addr := p.SenderAddr.Addr().Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("sender address %s is not IPv4", p.SenderAddr)
	}
	if len(p.Vector) > state.MaxVectorEntries {
		return nil, fmt.Errorf("vector has %d entries, max %d", len(p.Vector), state.MaxVectorEntries)
	}

	dests := make([]state.NodeId, 0, len(p.Vector))
	for d := range p.Vector {
		dests = append(dests, d)
	}
	slices.Sort(dests)

	buf := make([]byte, headerLen+entryLen*len(dests))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(dests)))
	binary.BigEndian.PutUint16(buf[2:4], uint16(p.SenderId))
	ip4 := addr.As4()
	copy(buf[4:8], ip4[:])
	binary.BigEndian.PutUint16(buf[8:10], p.SenderAddr.Port())
	for i, d := range dests {
		off := headerLen + entryLen*i
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(d))
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(p.Vector[d]))
	}
	return buf, nil
}

// Decode parses a datagram. The declared entry count must match the
// payload length exactly; truncated and over-long packets are rejected.
// Destination IDs outside the roster are preserved, never an error.
func Decode(b []byte) (Packet, error) {
	if len(b) < headerLen {
		return Packet{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrDecode, len(b))
	}
	count := int(binary.BigEndian.Uint16(b[0:2]))
	if count > state.MaxVectorEntries {
		return Packet{}, fmt.Errorf("%w: entry count %d exceeds limit %d", ErrDecode, count, state.MaxVectorEntries)
	}
	if want := headerLen + entryLen*count; len(b) != want {
		return Packet{}, fmt.Errorf("%w: %d entries need %d bytes, got %d", ErrDecode, count, want, len(b))
	}

	pkt := Packet{
		SenderId: state.NodeId(binary.BigEndian.Uint16(b[2:4])),
		Vector:   make(map[state.NodeId]state.Cost, count),
	}
	addr := netip.AddrFrom4([4]byte(b[4:8]))
	pkt.SenderAddr = netip.AddrPortFrom(addr, binary.BigEndian.Uint16(b[8:10]))
	for i := 0; i < count; i++ {
		off := headerLen + entryLen*i
		dest := state.NodeId(binary.BigEndian.Uint16(b[off : off+2]))
		cost := state.Cost(binary.BigEndian.Uint16(b[off+2 : off+4]))
		pkt.Vector[dest] = cost
	}
	return pkt, nil
}
