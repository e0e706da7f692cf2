package core

import (
	"net/netip"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/PrinceBashangezi/CS181NW-P2/wire"
)

// Sender transmits an encoded routing update to one peer.
type Sender interface {
	Send(to netip.AddrPort, payload []byte) error
}

// VectorSnapshot flattens the table into the advertised distance
// vector: one entry per roster member, unreachable carried as INF.
func VectorSnapshot(rs *state.RouterState) map[state.NodeId]state.Cost {
	vec := make(map[state.NodeId]state.Cost, len(rs.Table))
	for dest, entry := range rs.Table {
		vec[dest] = entry.Cost
	}
	return vec
}

// BroadcastVector sends the current vector to every alive neighbour.
// The snapshot is taken on the main goroutine, so a tick and a step
// racing each other at worst send twice, never corrupt.
func BroadcastVector(s *state.State) error {
	rs := s.RouterState
	if rs.Crashed {
		return nil
	}
	r := Get[*Router](s)
	if r.sender == nil {
		return nil
	}
	payload, err := wire.Encode(wire.Packet{
		SenderId:   rs.Self,
		SenderAddr: s.SelfAddr().Addr,
		Vector:     VectorSnapshot(rs),
	})
	if err != nil {
		return err
	}
	for _, n := range rs.AliveNeighbors() {
		desc, ok := s.Servers[n.Id]
		if !ok {
			continue
		}
		if err := r.sender.Send(desc.Addr, payload); err != nil {
			// non-fatal, the next periodic update retries
			s.Log.Warn("send failed", "neighbour", n.Id, "addr", desc.Addr, "error", err)
		}
	}
	return nil
}

// Step performs exactly one immediate broadcast without touching the
// periodic timer's phase. Silent no-op while crashed.
func Step(s *state.State) error {
	return BroadcastVector(s)
}
