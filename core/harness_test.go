package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/PrinceBashangezi/CS181NW-P2/wire"
)

// testTopo builds a roster of n servers (IDs 1..n on 10.0.0.x:500x)
// where self's neighbours and link costs are given by links.
func testTopo(self state.NodeId, n int, links map[state.NodeId]state.Cost) *state.Topology {
	topo := &state.Topology{
		SelfId:    self,
		Servers:   make(map[state.NodeId]state.ServerDescriptor),
		Neighbors: make(map[state.NodeId]state.Cost),
	}
	for i := 1; i <= n; i++ {
		id := state.NodeId(i)
		topo.Servers[id] = state.ServerDescriptor{
			Id:   id,
			Addr: netip.MustParseAddrPort(fmt.Sprintf("10.0.0.%d:%d", i, 5000+i)),
		}
	}
	for id, cost := range links {
		topo.Neighbors[id] = cost
	}
	return topo
}

type sentPacket struct {
	To      netip.AddrPort
	Payload []byte
}

type mockSender struct {
	Sent []sentPacket
}

func (m *mockSender) Send(to netip.AddrPort, payload []byte) error {
	m.Sent = append(m.Sent, sentPacket{To: to, Payload: payload})
	return nil
}

// newTestState wires a State with a recording sender and no live
// modules; handlers are invoked synchronously from the test goroutine,
// which stands in for the main loop.
func newTestState(topo *state.Topology) (*state.State, *mockSender) {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(*state.State) error, 128)
	s := &state.State{
		RouterState: state.NewRouterState(topo, time.Now()),
		Modules:     make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			Topology:        topo,
			Cfg:             state.DefaultLocalCfg(),
			Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
	m := &mockSender{}
	r := &Router{sender: m}
	s.Modules[moduleName(r)] = r
	return s, m
}

// simNet runs several engines in one process, delivering vectors
// directly instead of over UDP.
type simNet struct {
	nodes map[state.NodeId]*state.State
}

// newSimNet builds one engine per server over a shared undirected edge
// set.
func newSimNet(n int, edges map[[2]state.NodeId]state.Cost) *simNet {
	sim := &simNet{nodes: make(map[state.NodeId]*state.State)}
	for i := 1; i <= n; i++ {
		self := state.NodeId(i)
		links := make(map[state.NodeId]state.Cost)
		for edge, cost := range edges {
			switch self {
			case edge[0]:
				links[edge[1]] = cost
			case edge[1]:
				links[edge[0]] = cost
			}
		}
		s, _ := newTestState(testTopo(self, n, links))
		sim.nodes[self] = s
	}
	return sim
}

// exchange performs one synchronous round: every node hands its
// current vector to every neighbour.
func (sim *simNet) exchange(now time.Time) {
	type delivery struct {
		to  state.NodeId
		pkt wire.Packet
	}
	var pending []delivery
	for id, s := range sim.nodes {
		if s.RouterState.Crashed {
			continue
		}
		vec := VectorSnapshot(s.RouterState)
		for nid := range s.RouterState.Neighbors {
			pending = append(pending, delivery{
				to: nid,
				pkt: wire.Packet{
					SenderId:   id,
					SenderAddr: s.Servers[id].Addr,
					Vector:     vec,
				},
			})
		}
	}
	for _, d := range pending {
		_ = HandlePacket(sim.nodes[d.to], d.pkt, now)
	}
}

// converge runs rounds until nothing changes.
func (sim *simNet) converge(rounds int) {
	now := time.Now()
	for i := 0; i < rounds; i++ {
		sim.exchange(now)
	}
}

func (sim *simNet) cost(from, to state.NodeId) state.Cost {
	return sim.nodes[from].RouterState.Table[to].Cost
}

func pktFrom(s *state.State, from state.NodeId, vec map[state.NodeId]state.Cost) wire.Packet {
	return wire.Packet{
		SenderId:   from,
		SenderAddr: s.Servers[from].Addr,
		Vector:     vec,
	}
}
