package core

import (
	"math"
	"testing"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

func TestSelfEntryPinned(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1, 3: 4}))
	rs := s.RouterState

	self := rs.Table[1]
	assert.Equal(t, state.Cost(0), self.Cost)
	assert.Equal(t, state.NodeId(1), self.NextHop)

	// a neighbour claiming a cheaper path to ourselves must be ignored
	changed := Relax(rs, 2, map[state.NodeId]state.Cost{1: 0, 2: 0, 3: 1})
	assert.True(t, changed) // route to 3 improves via 2
	assert.Equal(t, state.Cost(0), rs.Table[1].Cost)
	assert.Equal(t, state.NodeId(1), rs.Table[1].NextHop)
}

func TestRelaxIgnoresDeadLinks(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1}))
	rs := s.RouterState

	vec := map[state.NodeId]state.Cost{2: 0, 3: 1}

	rs.Neighbors[2].State = state.LinkDisabled
	rs.Neighbors[2].Cost = state.INF
	assert.False(t, Relax(rs, 2, vec))

	// unknown link
	assert.False(t, Relax(rs, 3, vec))

	rs.Neighbors[2].State = state.LinkAlive
	rs.Neighbors[2].Cost = 1
	assert.True(t, Relax(rs, 2, vec))
	assert.Equal(t, state.Cost(2), rs.Table[3].Cost)
	assert.Equal(t, state.NodeId(2), rs.Table[3].NextHop)
}

func TestRelaxSaturates(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: state.INFM}))
	rs := s.RouterState

	// INFM + 5 must clamp below the sentinel, never wrap into it
	Relax(rs, 2, map[state.NodeId]state.Cost{2: 0, 3: 5})
	assert.Equal(t, state.INFM, rs.Table[3].Cost)
	assert.Equal(t, state.NodeId(2), rs.Table[3].NextHop)

	for _, e := range rs.Entries() {
		assert.LessOrEqual(t, e.Cost, state.INF)
	}
}

func TestNextHopInvariant(t *testing.T) {
	s, _ := newTestState(testTopo(1, 4, map[state.NodeId]state.Cost{2: 1}))
	rs := s.RouterState

	Relax(rs, 2, map[state.NodeId]state.Cost{2: 0, 3: 2, 4: state.INF})
	for _, e := range rs.Entries() {
		if e.Dest == rs.Self {
			continue
		}
		if e.Cost == state.INF {
			assert.Equal(t, state.None, e.NextHop, "dest %d", e.Dest)
		} else {
			assert.NotEqual(t, state.None, e.NextHop, "dest %d", e.Dest)
		}
	}
}

// A next hop that reprices a route must be believed, even upward, or a
// withdrawn route would stick at its stale value forever.
func TestNextHopRepriceBelieved(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1}))
	rs := s.RouterState

	Relax(rs, 2, map[state.NodeId]state.Cost{2: 0, 3: 1})
	require.Equal(t, state.Cost(2), rs.Table[3].Cost)

	// 2 now reports a worse path to 3
	assert.True(t, Relax(rs, 2, map[state.NodeId]state.Cost{2: 0, 3: 7}))
	assert.Equal(t, state.Cost(8), rs.Table[3].Cost)
	assert.Equal(t, state.NodeId(2), rs.Table[3].NextHop)

	// and finally withdraws it entirely
	assert.True(t, Relax(rs, 2, map[state.NodeId]state.Cost{2: 0, 3: state.INF}))
	assert.Equal(t, state.INF, rs.Table[3].Cost)
	assert.Equal(t, state.None, rs.Table[3].NextHop)

	// a non-next-hop neighbour reporting a worse path is not believed
	assert.False(t, Relax(rs, 2, map[state.NodeId]state.Cost{2: 0}))
}

func TestNoChangeReturnsFalse(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1}))
	rs := s.RouterState

	vec := map[state.NodeId]state.Cost{2: 0, 3: 1}
	assert.True(t, Relax(rs, 2, vec))
	assert.False(t, Relax(rs, 2, vec))
}

// Convergence on a fixed weighted graph is checked against gonum's
// all-pairs shortest paths.
func TestConvergenceMatchesFloydWarshall(t *testing.T) {
	edges := map[[2]state.NodeId]state.Cost{
		{1, 2}: 2,
		{2, 3}: 3,
		{3, 4}: 1,
		{4, 5}: 2,
		{5, 1}: 9,
		{2, 5}: 4,
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for edge, cost := range edges {
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(edge[0]),
			T: simple.Node(edge[1]),
			W: float64(cost),
		})
	}
	paths, ok := path.FloydWarshall(g)
	require.True(t, ok)

	sim := newSimNet(5, edges)
	sim.converge(10)

	for from := state.NodeId(1); from <= 5; from++ {
		for to := state.NodeId(1); to <= 5; to++ {
			want := paths.Weight(int64(from), int64(to))
			got := sim.cost(from, to)
			if math.IsInf(want, 1) {
				assert.Equal(t, state.INF, got, "%d -> %d", from, to)
			} else {
				assert.Equal(t, state.Cost(want), got, "%d -> %d", from, to)
			}
		}
	}
}

// Scenario: 4-node ring with unit costs; opposite corners converge to 2.
func ringNet() *simNet {
	return newSimNet(4, map[[2]state.NodeId]state.Cost{
		{1, 2}: 1,
		{2, 3}: 1,
		{3, 4}: 1,
		{4, 1}: 1,
	})
}

func TestRingConvergence(t *testing.T) {
	sim := ringNet()
	sim.converge(8)

	assert.Equal(t, state.Cost(2), sim.cost(1, 3))
	assert.Equal(t, state.Cost(2), sim.cost(3, 1))
	assert.Equal(t, state.Cost(2), sim.cost(2, 4))
	assert.Equal(t, state.Cost(2), sim.cost(4, 2))
	for id := state.NodeId(1); id <= 4; id++ {
		assert.Equal(t, state.Cost(0), sim.cost(id, id))
	}
}

// Scenario: disable 1-2 at the converged ring; 1 reaches 2 at cost 3
// the long way around.
func TestRingReroutesAroundDisabledLink(t *testing.T) {
	sim := ringNet()
	sim.converge(8)

	// the command is issued at both endpoints
	require.NoError(t, DisableLink(sim.nodes[1], 2))
	require.NoError(t, DisableLink(sim.nodes[2], 1))

	assert.Equal(t, state.INF, sim.nodes[1].RouterState.Neighbors[2].Cost)

	sim.converge(8)

	assert.Equal(t, state.Cost(3), sim.cost(1, 2))
	assert.Equal(t, state.NodeId(4), sim.nodes[1].RouterState.Table[2].NextHop)
	assert.Equal(t, state.Cost(3), sim.cost(2, 1))
	assert.Equal(t, state.NodeId(3), sim.nodes[2].RouterState.Table[1].NextHop)
}

func TestDisableOnlyPathGoesInfinity(t *testing.T) {
	// line 1 - 2 - 3: node 1 can only reach 3 through 2
	sim := newSimNet(3, map[[2]state.NodeId]state.Cost{
		{1, 2}: 1,
		{2, 3}: 1,
	})
	sim.converge(6)
	require.Equal(t, state.Cost(2), sim.cost(1, 3))

	require.NoError(t, DisableLink(sim.nodes[1], 2))
	rs := sim.nodes[1].RouterState
	assert.Equal(t, state.INF, rs.Table[2].Cost)
	assert.Equal(t, state.INF, rs.Table[3].Cost)
	assert.Equal(t, state.None, rs.Table[3].NextHop)
}

func TestRecomputeAllBounded(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1, 3: 5}))
	rs := s.RouterState

	// mutually referring vectors must not loop forever
	rs.Neighbors[2].LastVector = map[state.NodeId]state.Cost{1: 1, 2: 0, 3: 1}
	rs.Neighbors[3].LastVector = map[state.NodeId]state.Cost{1: 5, 2: 1, 3: 0}
	RecomputeAll(rs)

	assert.Equal(t, state.Cost(1), rs.Table[2].Cost)
	assert.Equal(t, state.Cost(2), rs.Table[3].Cost)
	assert.Equal(t, state.NodeId(2), rs.Table[3].NextHop)
}

func TestSweepTimeouts(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 1, 3: 2}))
	rs := s.RouterState
	now := time.Now()

	// 2 spoke recently, 3 has been silent past the timeout
	require.NoError(t, HandlePacket(s, pktFrom(s, 2, map[state.NodeId]state.Cost{2: 0}), now))
	rs.Neighbors[3].LastSeen = now.Add(-s.Cfg.NeighborTimeout() - time.Second)

	expired := SweepTimeouts(s, now)
	assert.Equal(t, []state.NodeId{3}, expired)

	n := rs.Neighbors[3]
	assert.Equal(t, state.LinkTimedOut, n.State)
	assert.Equal(t, state.INF, n.Cost)
	assert.Nil(t, n.LastVector)
	assert.Equal(t, state.INF, rs.Table[3].Cost)

	// the configured cost survives as ground truth for revival
	assert.Equal(t, state.Cost(2), n.BaseCost)

	// nothing new expires on a second sweep
	assert.Empty(t, SweepTimeouts(s, now))
}

func TestSweepCountsFromStartForSilentNeighbors(t *testing.T) {
	s, _ := newTestState(testTopo(1, 2, map[state.NodeId]state.Cost{2: 1}))
	rs := s.RouterState

	// never spoke: grace runs from engine start
	assert.Empty(t, SweepTimeouts(s, rs.StartedAt.Add(time.Second)))
	expired := SweepTimeouts(s, rs.StartedAt.Add(s.Cfg.NeighborTimeout()+time.Second))
	assert.Equal(t, []state.NodeId{2}, expired)
}

func TestPacketRevivesTimedOutNeighbor(t *testing.T) {
	s, _ := newTestState(testTopo(1, 3, map[state.NodeId]state.Cost{2: 4}))
	rs := s.RouterState
	now := time.Now()

	rs.Neighbors[2].State = state.LinkTimedOut
	rs.Neighbors[2].Cost = state.INF
	RecomputeAll(rs)
	require.Equal(t, state.INF, rs.Table[2].Cost)

	require.NoError(t, HandlePacket(s, pktFrom(s, 2, map[state.NodeId]state.Cost{2: 0, 3: 1}), now))

	n := rs.Neighbors[2]
	assert.Equal(t, state.LinkAlive, n.State)
	// cost restored from the local topology record, not the packet
	assert.Equal(t, state.Cost(4), n.Cost)
	assert.Equal(t, now, n.LastSeen)
	assert.Equal(t, state.Cost(4), rs.Table[2].Cost)
	assert.Equal(t, state.Cost(5), rs.Table[3].Cost)
}
