package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
)

// Console is the interactive command front end. It parses one command
// per line, calls into the engine through the dispatch queue, and
// echoes the protocol's "<command> SUCCESS" / "<command> <ERROR>"
// response convention.
type Console struct {
	In  io.Reader // defaults to os.Stdin
	Out io.Writer // defaults to os.Stdout
}

func (c *Console) Init(s *state.State) error {
	if c.In == nil {
		c.In = os.Stdin
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	go c.loop(s.Env)
	return nil
}

func (c *Console) Cleanup(s *state.State) error {
	return nil
}

func (c *Console) loop(e *state.Env) {
	sc := bufio.NewScanner(c.In)
	for sc.Scan() {
		if e.Context.Err() != nil {
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(c.Out, Execute(e, line))
	}
}

// Execute runs one console command and returns the response text.
func Execute(e *state.Env, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	switch strings.ToLower(fields[0]) {
	case "display":
		return cmdDisplay(e, line)
	case "step":
		return report(e, line, func(s *state.State) error { return Step(s) })
	case "packets":
		return cmdPackets(e, line, fields[1:])
	case "update":
		return cmdUpdate(e, line, fields[1:])
	case "crash":
		return report(e, line, func(s *state.State) error { Crash(s); return nil })
	case "recover":
		return report(e, line, func(s *state.State) error { Recover(s); return nil })
	case "disable":
		return cmdDisable(e, line, fields[1:])
	case "enable":
		return cmdEnable(e, line, fields[1:])
	case "quit", "exit":
		e.Cancel(fmt.Errorf("console requested shutdown"))
		return line + " SUCCESS"
	}
	return line + " UNKNOWN COMMAND"
}

// report runs fn on the main goroutine and maps its error onto the
// response convention.
func report(e *state.Env, line string, fn func(*state.State) error) string {
	_, err := e.DispatchWait(func(s *state.State) (any, error) {
		return nil, fn(s)
	})
	if err != nil {
		return fmt.Sprintf("%s %s", line, errorWord(err))
	}
	return line + " SUCCESS"
}

func errorWord(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, ErrInvalidCost):
		return "INVALID COST"
	case errors.Is(err, ErrUnknownNeighbor):
		return "UNKNOWN SERVER"
	}
	return strings.ToUpper(err.Error())
}

func cmdDisplay(e *state.Env, line string) string {
	res, err := e.DispatchWait(func(s *state.State) (any, error) {
		return s.StringTable(), nil
	})
	if err != nil {
		return fmt.Sprintf("%s %s", line, errorWord(err))
	}
	return res.(string) + "\n" + line + " SUCCESS"
}

func cmdPackets(e *state.Env, line string, args []string) string {
	if len(args) > 1 {
		return line + " INVALID ARG"
	}
	if len(args) == 1 {
		var enable bool
		switch strings.ToLower(args[0]) {
		case "on":
			enable = true
		case "off":
			enable = false
		default:
			return line + " INVALID ARG"
		}
		return report(e, line, func(s *state.State) error {
			s.RouterState.LogPackets = enable
			return nil
		})
	}
	res, err := e.DispatchWait(func(s *state.State) (any, error) {
		return PacketCountAndReset(s), nil
	})
	if err != nil {
		return fmt.Sprintf("%s %s", line, errorWord(err))
	}
	return fmt.Sprintf("%s SUCCESS %d", line, res.(int))
}

// cmdUpdate handles "update <id1> <id2> <cost|inf>". The command is
// issued to both endpoints of the link separately; a node that is
// neither endpoint just acknowledges it.
func cmdUpdate(e *state.Env, line string, args []string) string {
	if len(args) != 3 {
		return line + " USAGE: update <server-ID1> <server-ID2> <cost>"
	}
	id1, err1 := parseId(args[0])
	id2, err2 := parseId(args[1])
	if err1 != nil || err2 != nil {
		return line + " UNKNOWN SERVER"
	}
	cost, err := state.ParseCost(args[2])
	if err != nil {
		return line + " INVALID COST"
	}
	var neighbor state.NodeId
	switch e.SelfId {
	case id1:
		neighbor = id2
	case id2:
		neighbor = id1
	default:
		return line + " SUCCESS" // not an endpoint of this link
	}
	return report(e, line, func(s *state.State) error {
		return SetLinkCost(s, neighbor, cost)
	})
}

func cmdDisable(e *state.Env, line string, args []string) string {
	if len(args) != 1 {
		return line + " USAGE: disable <server-ID>"
	}
	id, err := parseId(args[0])
	if err != nil {
		return line + " UNKNOWN SERVER"
	}
	return report(e, line, func(s *state.State) error {
		return DisableLink(s, id)
	})
}

func cmdEnable(e *state.Env, line string, args []string) string {
	if len(args) != 2 {
		return line + " USAGE: enable <server-ID> <cost>"
	}
	id, err := parseId(args[0])
	if err != nil {
		return line + " UNKNOWN SERVER"
	}
	cost, err := state.ParseCost(args[1])
	if err != nil || cost == state.INF {
		return line + " INVALID COST"
	}
	return report(e, line, func(s *state.State) error {
		return EnableLink(s, id, cost)
	})
}

func parseId(tok string) (state.NodeId, error) {
	var id uint16
	if _, err := fmt.Sscanf(tok, "%d", &id); err != nil || id == 0 {
		return 0, fmt.Errorf("bad server id %q", tok)
	}
	return state.NodeId(id), nil
}
