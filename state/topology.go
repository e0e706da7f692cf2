package state

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// ServerDescriptor is one immutable roster entry.
type ServerDescriptor struct {
	Id   NodeId
	Addr netip.AddrPort
}

// Topology is the static-at-boot description of the network: this
// node's identity, the full roster, and the initial cost of every
// direct link. It is read once and never mutated.
type Topology struct {
	SelfId    NodeId
	Servers   map[NodeId]ServerDescriptor
	Neighbors map[NodeId]Cost
}

// ParseCost parses a cost token from a topology file or console
// command. "inf" (any case) is accepted as the unreachable sentinel.
func ParseCost(tok string) (Cost, error) {
	if strings.EqualFold(tok, "inf") {
		return INF, nil
	}
	v, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cost %q is not a non-negative integer", tok)
	}
	if v > uint64(INFM) {
		return 0, fmt.Errorf("cost %d is out of range (max %d)", v, uint64(INFM))
	}
	return Cost(v), nil
}

func parseNodeId(tok string) (NodeId, error) {
	v, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("server id %q is not a 16-bit integer", tok)
	}
	if v == 0 {
		return 0, fmt.Errorf("server id must be nonzero")
	}
	return NodeId(v), nil
}

func parseServerLine(fields []string) (ServerDescriptor, error) {
	if len(fields) != 3 {
		return ServerDescriptor{}, fmt.Errorf("expected <server-ID> <server-IP> <server-port>, got %d fields", len(fields))
	}
	id, err := parseNodeId(fields[0])
	if err != nil {
		return ServerDescriptor{}, err
	}
	addr, err := netip.ParseAddr(fields[1])
	if err != nil {
		return ServerDescriptor{}, fmt.Errorf("bad server ip %q: %w", fields[1], err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return ServerDescriptor{}, fmt.Errorf("server ip %q is not IPv4", fields[1])
	}
	port, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return ServerDescriptor{}, fmt.Errorf("bad server port %q: %w", fields[2], err)
	}
	return ServerDescriptor{Id: id, Addr: netip.AddrPortFrom(addr, uint16(port))}, nil
}

// ParseTopology reads the topology description:
//
//	<num-servers>
//	<num-neighbors>
//	<self-ID> <self-IP> <self-port>
//	<server-ID> <server-IP> <server-port>   (num-servers lines)
//	<server-ID1> <server-ID2> <cost>        (num-neighbors lines)
//
// Blank lines are skipped. Link lines not involving this server are
// ignored; a neighbour that is missing from the roster is an error.
func ParseTopology(r io.Reader) (*Topology, error) {
	var lines [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("topology must have at least 3 lines, got %d", len(lines))
	}

	numServers, err := strconv.Atoi(lines[0][0])
	if err != nil || numServers <= 0 {
		return nil, fmt.Errorf("bad server count %q", lines[0][0])
	}
	numNeighbors, err := strconv.Atoi(lines[1][0])
	if err != nil || numNeighbors < 0 {
		return nil, fmt.Errorf("bad neighbour count %q", lines[1][0])
	}

	self, err := parseServerLine(lines[2])
	if err != nil {
		return nil, fmt.Errorf("self line: %w", err)
	}

	if len(lines) != 3+numServers+numNeighbors {
		return nil, fmt.Errorf("expected %d lines, got %d", 3+numServers+numNeighbors, len(lines))
	}

	topo := &Topology{
		SelfId:    self.Id,
		Servers:   make(map[NodeId]ServerDescriptor, numServers),
		Neighbors: make(map[NodeId]Cost, numNeighbors),
	}
	for i := 0; i < numServers; i++ {
		desc, err := parseServerLine(lines[3+i])
		if err != nil {
			return nil, fmt.Errorf("server line %d: %w", i+1, err)
		}
		if _, dup := topo.Servers[desc.Id]; dup {
			return nil, fmt.Errorf("duplicate server id %d", desc.Id)
		}
		topo.Servers[desc.Id] = desc
	}
	if _, ok := topo.Servers[self.Id]; !ok {
		return nil, fmt.Errorf("self id %d is not in the server roster", self.Id)
	}

	for i := 0; i < numNeighbors; i++ {
		fields := lines[3+numServers+i]
		if len(fields) != 3 {
			return nil, fmt.Errorf("link line %d: expected <server-ID1> <server-ID2> <cost>", i+1)
		}
		id1, err := parseNodeId(fields[0])
		if err != nil {
			return nil, fmt.Errorf("link line %d: %w", i+1, err)
		}
		id2, err := parseNodeId(fields[1])
		if err != nil {
			return nil, fmt.Errorf("link line %d: %w", i+1, err)
		}
		cost, err := ParseCost(fields[2])
		if err != nil {
			return nil, fmt.Errorf("link line %d: %w", i+1, err)
		}
		var neighbor NodeId
		switch self.Id {
		case id1:
			neighbor = id2
		case id2:
			neighbor = id1
		default:
			continue // link between two other servers
		}
		if _, ok := topo.Servers[neighbor]; !ok {
			return nil, fmt.Errorf("neighbour %d is not in the server roster", neighbor)
		}
		topo.Neighbors[neighbor] = cost
	}
	return topo, nil
}

// LoadTopology parses the topology file at path.
func LoadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	topo, err := ParseTopology(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return topo, nil
}
