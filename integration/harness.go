//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/core"
	"github.com/PrinceBashangezi/CS181NW-P2/state"
)

// Harness runs several daemon instances over real loopback UDP sockets
// inside one test process.
type Harness struct {
	t     *testing.T
	nodes map[state.NodeId]*node
}

type node struct {
	s    *state.State
	done chan struct{}
}

// NewHarness builds one node per server over the shared undirected edge
// set, binding 127.0.0.1 ports counted up from basePort.
func NewHarness(t *testing.T, n int, basePort uint16, edges map[[2]state.NodeId]state.Cost, interval time.Duration) *Harness {
	t.Helper()
	h := &Harness{t: t, nodes: make(map[state.NodeId]*node)}

	servers := make(map[state.NodeId]state.ServerDescriptor, n)
	for i := 1; i <= n; i++ {
		id := state.NodeId(i)
		servers[id] = state.ServerDescriptor{
			Id:   id,
			Addr: netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), basePort+uint16(i)),
		}
	}

	for i := 1; i <= n; i++ {
		self := state.NodeId(i)
		topo := &state.Topology{
			SelfId:    self,
			Servers:   servers,
			Neighbors: make(map[state.NodeId]state.Cost),
		}
		for edge, cost := range edges {
			switch self {
			case edge[0]:
				topo.Neighbors[edge[1]] = cost
			case edge[1]:
				topo.Neighbors[edge[0]] = cost
			}
		}
		h.nodes[self] = h.startNode(topo, interval)
	}
	return h
}

func (h *Harness) startNode(topo *state.Topology, interval time.Duration) *node {
	cfg := state.DefaultLocalCfg()
	cfg.Interval = state.Duration(interval)

	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(*state.State) error)
	s := &state.State{
		RouterState: state.NewRouterState(topo, time.Now()),
		Modules:     make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			Topology:        topo,
			Cfg:             cfg,
			Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}

	n := &node{s: s, done: make(chan struct{})}
	go func() {
		defer close(n.done)
		if err := core.Launch(s, []state.Module{&core.Router{}, &core.Sock{}}, dispatch); err != nil {
			h.t.Errorf("node %d: %v", topo.SelfId, err)
		}
	}()
	return n
}

// Stop tears every node down and waits for its main loop to exit.
func (h *Harness) Stop() {
	for _, n := range h.nodes {
		n.s.Cancel(fmt.Errorf("harness stop"))
	}
	for _, n := range h.nodes {
		<-n.done
	}
}

// Cost asks a node for its current cost to dest through the dispatch
// queue, so the read is consistent with concurrent packet handling.
func (h *Harness) Cost(from, dest state.NodeId) state.Cost {
	res, err := h.nodes[from].s.DispatchWait(func(s *state.State) (any, error) {
		return s.RouterState.Table[dest].Cost, nil
	})
	if err != nil {
		return state.INF
	}
	return res.(state.Cost)
}

// Disable issues the disable command on one node.
func (h *Harness) Disable(on, link state.NodeId) error {
	_, err := h.nodes[on].s.DispatchWait(func(s *state.State) (any, error) {
		return nil, core.DisableLink(s, link)
	})
	return err
}
