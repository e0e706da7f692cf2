package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Module is one unit of the daemon (router, socket, console) with a
// managed lifecycle.
type Module interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the main goroutine.
type State struct {
	*Env
	*RouterState
	Modules map[string]Module

	Started  atomic.Bool
	Stopping atomic.Bool
}

// Env can be read from any goroutine.
type Env struct {
	DispatchChannel chan<- func(s *State) error
	*Topology
	Cfg     LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
}

// SelfAddr is the UDP address this node binds and advertises.
func (e *Env) SelfAddr() ServerDescriptor {
	return e.Servers[e.SelfId]
}
