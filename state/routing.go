package state

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// NodeId identifies a server in the roster. IDs are small positive
// integers assigned by the topology file.
type NodeId uint16

// Cost is a link or path cost. INF means unreachable.
type Cost uint16

func (c Cost) String() string {
	if c == INF {
		return "inf"
	}
	return fmt.Sprintf("%d", uint16(c))
}

type LinkState int

const (
	LinkAlive LinkState = iota
	LinkDisabled
	LinkTimedOut
)

func (l LinkState) String() string {
	switch l {
	case LinkAlive:
		return "alive"
	case LinkDisabled:
		return "disabled"
	case LinkTimedOut:
		return "timed-out"
	}
	return "unknown"
}

// RouteEntry is one row of the distance vector table.
// Invariant: NextHop == None exactly when Cost == INF, except for the
// self entry which is pinned at {0, self}.
type RouteEntry struct {
	Dest    NodeId
	Cost    Cost
	NextHop NodeId
}

// NeighborLink tracks the state of one direct link.
type NeighborLink struct {
	Id NodeId

	// BaseCost is the configured cost of the link, the ground truth the
	// link returns to when a timed-out neighbour comes back. Updated by
	// the update command, never by received packets.
	BaseCost Cost

	// Cost is the effective advertised cost used by relaxation. INF
	// while the link is disabled or timed out.
	Cost Cost

	// LastVector is the most recent distance vector heard from this
	// neighbour, nil if none (or cleared by a timeout).
	LastVector map[NodeId]Cost

	// LastSeen is the arrival time of the last packet from this
	// neighbour. Zero means it has never spoken; liveness then counts
	// from the engine start time instead.
	LastSeen time.Time

	State LinkState
}

// RouterState is the node's entire mutable routing state: the distance
// vector table plus the neighbour registry. It must only be touched on
// the main goroutine.
type RouterState struct {
	Self      NodeId
	Table     map[NodeId]*RouteEntry
	Neighbors map[NodeId]*NeighborLink

	// Crashed simulates total node failure: nothing is sent and inbound
	// packets are dropped without bookkeeping. The table is kept as-is.
	Crashed bool

	// PacketsReceived counts successfully decoded inbound vectors since
	// the last reset (the "packets" command reads and zeroes it).
	PacketsReceived int

	// LogPackets toggles per-packet receive logging ("packets on|off").
	LogPackets bool

	// StartedAt anchors liveness for neighbours that have never spoken.
	StartedAt time.Time
}

// NewRouterState builds the initial routing state from the topology:
// self at cost 0, direct neighbours at their configured cost, everything
// else unreachable.
func NewRouterState(topo *Topology, now time.Time) *RouterState {
	rs := &RouterState{
		Self:      topo.SelfId,
		Table:     make(map[NodeId]*RouteEntry, len(topo.Servers)),
		Neighbors: make(map[NodeId]*NeighborLink, len(topo.Neighbors)),
		StartedAt: now,
	}
	for id := range topo.Servers {
		rs.Table[id] = &RouteEntry{Dest: id, Cost: INF, NextHop: None}
	}
	rs.Table[topo.SelfId] = &RouteEntry{Dest: topo.SelfId, Cost: 0, NextHop: topo.SelfId}
	for id, cost := range topo.Neighbors {
		rs.Neighbors[id] = &NeighborLink{
			Id:       id,
			BaseCost: cost,
			Cost:     cost,
			State:    LinkAlive,
		}
		if cost != INF {
			rs.Table[id] = &RouteEntry{Dest: id, Cost: cost, NextHop: id}
		}
	}
	return rs
}

func (rs *RouterState) GetNeighbor(id NodeId) *NeighborLink {
	return rs.Neighbors[id]
}

// NeighborIds returns all registry keys in ascending order. Relaxation
// passes and sweeps iterate in this order so reconvergence is
// deterministic.
func (rs *RouterState) NeighborIds() []NodeId {
	ids := make([]NodeId, 0, len(rs.Neighbors))
	for id := range rs.Neighbors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AliveNeighbors returns the neighbours eligible for broadcast, in
// ascending ID order.
func (rs *RouterState) AliveNeighbors() []*NeighborLink {
	out := make([]*NeighborLink, 0, len(rs.Neighbors))
	for _, id := range rs.NeighborIds() {
		if n := rs.Neighbors[id]; n.State == LinkAlive {
			out = append(out, n)
		}
	}
	return out
}

// Entries returns a snapshot of the table sorted by destination ID.
func (rs *RouterState) Entries() []RouteEntry {
	out := make([]RouteEntry, 0, len(rs.Table))
	for _, e := range rs.Table {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b RouteEntry) int {
		return int(a.Dest) - int(b.Dest)
	})
	return out
}

// StringTable renders the table for the display command.
func (rs *RouterState) StringTable() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Routing Table for Server %d:\n", rs.Self))
	sb.WriteString(fmt.Sprintf("%-15s %-15s %-15s\n", "Destination", "Cost", "Next Hop"))
	for _, e := range rs.Entries() {
		hop := "-"
		if e.NextHop != None {
			hop = fmt.Sprintf("%d", e.NextHop)
		}
		sb.WriteString(fmt.Sprintf("%-15d %-15s %-15s\n", e.Dest, e.Cost, hop))
	}
	return strings.TrimRight(sb.String(), "\n")
}
