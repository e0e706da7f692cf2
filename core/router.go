package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/PrinceBashangezi/CS181NW-P2/wire"
)

var (
	// ErrUnknownNeighbor rejects link commands that target a server which
	// is not one of this node's direct neighbours.
	ErrUnknownNeighbor = errors.New("not a direct neighbour")
	// ErrInvalidCost rejects costs that are negative, non-integer, or out
	// of range.
	ErrInvalidCost = errors.New("invalid link cost")
)

// Router is the routing engine module. It owns the periodic update
// cycle; the routing state itself lives in state.RouterState and is only
// touched on the main goroutine.
type Router struct {
	// sender transmits encoded vectors. Wired by the Sock module at
	// startup, replaced by a recorder in tests.
	sender Sender
}

func (r *Router) Init(s *state.State) error {
	s.Log.Debug("init router")
	s.RepeatTask(routerTick, s.Cfg.UpdateInterval())
	return nil
}

func (r *Router) Cleanup(s *state.State) error {
	return nil
}

// routerTick runs once per update interval: broadcast our vector to
// every alive neighbour, then sweep for neighbours that went silent.
// A crashed node does neither.
func routerTick(s *state.State) error {
	if s.RouterState.Crashed {
		return nil
	}
	if err := BroadcastVector(s); err != nil {
		s.Log.Warn("periodic broadcast failed", "error", err)
	}
	SweepTimeouts(s, time.Now())
	return nil
}

// Relax applies the Bellman-Ford rule using the given neighbour's
// vector and reports whether any table entry changed. A vector from a
// link that is not currently alive with finite cost is ignored.
//
// An entry is rewritten when routing via the neighbour is strictly
// cheaper, or when the neighbour is already our next hop and reports a
// different price (including a worse one): our current next hop must be
// believed, or withdrawn routes would stick at stale values.
func Relax(rs *state.RouterState, from state.NodeId, vector map[state.NodeId]state.Cost) bool {
	n := rs.GetNeighbor(from)
	if n == nil || n.State != state.LinkAlive || n.Cost == state.INF || vector == nil {
		return false
	}
	changed := false
	for dest, entry := range rs.Table {
		if dest == rs.Self {
			continue // the self entry is pinned at {0, self}
		}
		adv, ok := vector[dest]
		if !ok {
			adv = state.INF
		}
		candidate := AddCost(n.Cost, adv)
		improved := candidate < entry.Cost
		viaRepriced := entry.NextHop == from && candidate != entry.Cost
		if !improved && !viaRepriced {
			continue
		}
		entry.Cost = candidate
		if candidate == state.INF {
			entry.NextHop = state.None
		} else {
			entry.NextHop = from
		}
		changed = true
	}
	return changed
}

// RecomputeAll rebuilds the table from scratch: direct-link base state,
// then repeated relaxation passes over every alive neighbour's last
// vector (ascending ID order) until a pass changes nothing or the pass
// count reaches the roster size. Called whenever a link goes down, comes
// up, or changes cost locally, so stale paths through the affected link
// are discarded without waiting for a distributed round trip.
func RecomputeAll(rs *state.RouterState) {
	for dest, entry := range rs.Table {
		if dest == rs.Self {
			continue
		}
		entry.Cost = state.INF
		entry.NextHop = state.None
	}
	for _, n := range rs.Neighbors {
		if n.State != state.LinkAlive || n.Cost == state.INF {
			continue
		}
		entry := rs.Table[n.Id]
		if n.Cost < entry.Cost {
			entry.Cost = n.Cost
			entry.NextHop = n.Id
		}
	}

	ids := rs.NeighborIds()
	for range rs.Table {
		changed := false
		for _, id := range ids {
			n := rs.Neighbors[id]
			if n.State != state.LinkAlive || n.LastVector == nil {
				continue
			}
			if Relax(rs, id, n.LastVector) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

// SweepTimeouts marks alive neighbours that have been silent for longer
// than the liveness timeout as timed out. A neighbour that has never
// spoken is measured from engine start. Returns the IDs that expired.
func SweepTimeouts(s *state.State, now time.Time) []state.NodeId {
	rs := s.RouterState
	timeout := s.Cfg.NeighborTimeout()
	var expired []state.NodeId
	for _, id := range rs.NeighborIds() {
		n := rs.Neighbors[id]
		if n.State != state.LinkAlive {
			continue
		}
		last := n.LastSeen
		if last.IsZero() {
			last = rs.StartedAt
		}
		if now.Sub(last) <= timeout {
			continue
		}
		n.State = state.LinkTimedOut
		n.Cost = state.INF
		n.LastVector = nil
		expired = append(expired, id)
		s.Log.Info("neighbour timed out", "neighbour", id, "silent", now.Sub(last))
	}
	if len(expired) > 0 {
		RecomputeAll(rs)
	}
	return expired
}

// HandlePacket ingests one decoded routing update on the main
// goroutine. While crashed the node drops everything silently and the
// counter does not move; otherwise every decoded packet is counted,
// even ones later dropped as non-neighbour or disabled-link traffic.
func HandlePacket(s *state.State, pkt wire.Packet, receivedAt time.Time) error {
	rs := s.RouterState
	if rs.Crashed {
		return nil
	}
	rs.PacketsReceived++
	if rs.LogPackets {
		s.Log.Info("packet received",
			"from", pkt.SenderAddr, "server", pkt.SenderId, "entries", len(pkt.Vector))
	}

	n := rs.GetNeighbor(pkt.SenderId)
	if n == nil {
		s.Log.Debug("vector from non-neighbour dropped", "server", pkt.SenderId)
		return nil
	}
	if n.State == state.LinkDisabled {
		s.Log.Debug("vector on disabled link dropped", "neighbour", pkt.SenderId)
		return nil
	}

	revived := n.State == state.LinkTimedOut
	n.State = state.LinkAlive
	// The link cost comes from our local topology record, never from the
	// packet: the packet carries the neighbour's vector, not the link.
	n.Cost = n.BaseCost
	n.LastSeen = receivedAt
	n.LastVector = pkt.Vector

	if revived {
		s.Log.Info("neighbour back online", "neighbour", pkt.SenderId)
		RecomputeAll(rs)
		return nil
	}
	Relax(rs, pkt.SenderId, pkt.Vector)
	return nil
}

// SetLinkCost applies a local cost change to a direct link. An INF cost
// is the same as disabling the link.
func SetLinkCost(s *state.State, id state.NodeId, cost state.Cost) error {
	rs := s.RouterState
	n := rs.GetNeighbor(id)
	if n == nil {
		return fmt.Errorf("server %d: %w", id, ErrUnknownNeighbor)
	}
	if cost == state.INF {
		return DisableLink(s, id)
	}
	n.BaseCost = cost
	if n.State == state.LinkAlive {
		n.Cost = cost
	}
	RecomputeAll(rs)
	s.Log.Info("link cost updated", "neighbour", id, "cost", cost)
	return nil
}

// DisableLink forces a direct link down until explicitly re-enabled.
func DisableLink(s *state.State, id state.NodeId) error {
	rs := s.RouterState
	n := rs.GetNeighbor(id)
	if n == nil {
		return fmt.Errorf("server %d: %w", id, ErrUnknownNeighbor)
	}
	n.State = state.LinkDisabled
	n.Cost = state.INF
	n.BaseCost = state.INF
	RecomputeAll(rs)
	s.Log.Info("link disabled", "neighbour", id)
	return nil
}

// EnableLink restores a finite cost on a disabled (or timed-out) link.
// The neighbour gets a fresh liveness grace period; its next packet
// brings a current vector.
func EnableLink(s *state.State, id state.NodeId, cost state.Cost) error {
	if cost == state.INF {
		return fmt.Errorf("enable needs a finite cost: %w", ErrInvalidCost)
	}
	rs := s.RouterState
	n := rs.GetNeighbor(id)
	if n == nil {
		return fmt.Errorf("server %d: %w", id, ErrUnknownNeighbor)
	}
	n.State = state.LinkAlive
	n.BaseCost = cost
	n.Cost = cost
	n.LastSeen = time.Now()
	RecomputeAll(rs)
	s.Log.Info("link enabled", "neighbour", id, "cost", cost)
	return nil
}

// Crash simulates total node failure. The table is deliberately kept.
func Crash(s *state.State) {
	s.RouterState.Crashed = true
	s.Log.Warn("simulating crash: all traffic suspended")
}

// Recover resumes normal operation. No immediate broadcast happens; the
// protocol only sends on the periodic timer or an explicit step.
func Recover(s *state.State) {
	s.RouterState.Crashed = false
	s.Log.Info("recovered from simulated crash")
}

// PacketCountAndReset returns the packets received since the last call
// and zeroes the counter.
func PacketCountAndReset(s *state.State) int {
	n := s.RouterState.PacketsReceived
	s.RouterState.PacketsReceived = 0
	return n
}
