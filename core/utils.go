package core

import (
	"reflect"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
)

// AddCost is saturating: an INF operand yields INF, and a finite sum is
// capped below the sentinel so it can never overflow into it.
func AddCost(a, b state.Cost) state.Cost {
	if a == state.INF || b == state.INF {
		return state.INF
	}
	return state.Cost(min(uint32(state.INFM), uint32(a)+uint32(b)))
}

func Get[T state.Module](s *state.State) T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return s.Modules[t.String()].(T)
}
