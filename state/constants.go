package state

import "time"

const (
	// INF is the reserved "unreachable" sentinel. Saturating cost
	// arithmetic never produces it from two finite operands.
	INF = ^Cost(0)
	// INFM is the largest cost a real path can carry.
	INFM = INF - 1

	// None marks the absence of a next hop. Server IDs are validated to
	// be nonzero at topology load, so 0 is free to use as a sentinel.
	None = NodeId(0)

	// MaxVectorEntries bounds the number of (destination, cost) pairs a
	// single datagram may carry. Keeps a routing update well under any
	// sane MTU and stops a hostile count field from allocating garbage.
	MaxVectorEntries = 256
)

var (
	// DefaultUpdateInterval is the periodic broadcast period used when
	// the node config does not override it.
	DefaultUpdateInterval = 10 * time.Second

	// DefaultTimeoutMultiple scales the update interval into the
	// neighbour liveness timeout. Three missed updates marks a link dead.
	DefaultTimeoutMultiple = 3

	// SlowDispatchThreshold flags handlers that hog the main loop.
	SlowDispatchThreshold = 50 * time.Millisecond
)
