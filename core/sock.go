package core

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/PrinceBashangezi/CS181NW-P2/state"
	"github.com/PrinceBashangezi/CS181NW-P2/wire"
)

// Sock is the UDP transport module: it binds this node's roster
// address, feeds decoded packets to the engine, and serves as the
// engine's Sender.
type Sock struct {
	conn *net.UDPConn
}

func (k *Sock) Init(s *state.State) error {
	self := s.SelfAddr()
	conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(self.Addr))
	if err != nil {
		// The only unrecoverable startup condition.
		return fmt.Errorf("bind %s: %w", self.Addr, err)
	}
	k.conn = conn
	Get[*Router](s).sender = k
	s.Log.Info("listening", "addr", self.Addr)
	go k.listen(s.Env)
	return nil
}

func (k *Sock) Cleanup(s *state.State) error {
	if k.conn != nil {
		return k.conn.Close()
	}
	return nil
}

func (k *Sock) Send(to netip.AddrPort, payload []byte) error {
	_, err := k.conn.WriteToUDPAddrPort(payload, to)
	return err
}

// listen drains the socket until it is closed. Decoding is pure and
// happens here, off the main goroutine; only the accepted packet is
// dispatched.
func (k *Sock) listen(e *state.Env) {
	buf := make([]byte, 65535)
	for {
		n, _, err := k.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if e.Context.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			e.Log.Warn("udp read failed", "error", err)
			continue
		}
		pkt, err := wire.Decode(buf[:n])
		if err != nil {
			// Malformed packets are logged and dropped; they never reach
			// the engine or its counter.
			e.Log.Warn("dropping packet", "error", err)
			continue
		}
		receivedAt := time.Now()
		e.Dispatch(func(s *state.State) error {
			return HandlePacket(s, pkt, receivedAt)
		})
	}
}
