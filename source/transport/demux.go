package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// sessionIdleTimeout is how long a demultiplexed peer can go without a
// datagram before Demuxer forgets about it and lets a later datagram
// from the same address start a fresh session.
const sessionIdleTimeout = 30 * time.Second

// Demuxer turns one bound UDP socket into many per-peer Endpoints, so
// a single "rft serve" process can receive more than one
// transfer without rebinding a socket per client. Each distinct source
// address gets its own demuxEndpoint and its own inbound queue; the
// protocol engine never has to know it's sharing a socket.
type Demuxer struct {
	conn *net.UDPConn

	mu       sync.Mutex
	sessions map[string]*demuxEndpoint

	accept chan *demuxEndpoint
}

// ListenDemux binds port and starts the dispatch loop in the
// background. Call Accept to receive each new peer as it appears, and
// Close to tear the whole thing down.
func ListenDemux(port int) (*Demuxer, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listen on port %d: %w", port, err)
	}
	d := &Demuxer{
		conn:     conn,
		sessions: make(map[string]*demuxEndpoint),
		accept:   make(chan *demuxEndpoint, 16),
	}
	go d.dispatchLoop()
	go d.reapLoop()
	return d, nil
}

// Accept blocks until a datagram from a not-yet-seen peer arrives, or
// ctx is cancelled.
func (d *Demuxer) Accept(ctx context.Context) (Endpoint, error) {
	select {
	case ep := <-d.accept:
		return ep, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the underlying socket. In-flight demuxEndpoints start
// returning ErrTimeout on Recv once their queues drain.
func (d *Demuxer) Close() error {
	return d.conn.Close()
}

func (d *Demuxer) dispatchLoop() {
	buf := make([]byte, protocolMaxDatagram)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		key := addr.String()
		d.mu.Lock()
		ep, known := d.sessions[key]
		if !known {
			ep = &demuxEndpoint{
				conn:   d.conn,
				peer:   addr,
				inbox:  make(chan []byte, 256),
				demux:  d,
				sessID: key,
			}
			d.sessions[key] = ep
		}
		ep.touch()
		d.mu.Unlock()

		if !known {
			d.accept <- ep
		}
		select {
		case ep.inbox <- datagram:
		default:
			// Session's queue is saturated; drop rather than block the
			// dispatch loop for every other peer.
		}
	}
}

// reapLoop forgets sessions that have gone quiet, so a peer that
// vanished mid-transfer doesn't leak forever.
func (d *Demuxer) reapLoop() {
	ticker := time.NewTicker(sessionIdleTimeout / 3)
	defer ticker.Stop()
	for range ticker.C {
		d.mu.Lock()
		for key, ep := range d.sessions {
			if time.Since(ep.lastSeen()) > sessionIdleTimeout {
				delete(d.sessions, key)
			}
		}
		d.mu.Unlock()
	}
}

// demuxEndpoint is one peer's view of a shared socket.
type demuxEndpoint struct {
	conn   *net.UDPConn
	peer   net.Addr
	inbox  chan []byte
	demux  *Demuxer
	sessID string

	mu   sync.Mutex
	last time.Time
}

func (e *demuxEndpoint) touch() {
	e.mu.Lock()
	e.last = time.Now()
	e.mu.Unlock()
}

func (e *demuxEndpoint) lastSeen() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *demuxEndpoint) Send(b []byte) error {
	_, err := e.conn.WriteToUDP(b, e.peer.(*net.UDPAddr))
	return err
}

func (e *demuxEndpoint) Recv(timeout time.Duration) ([]byte, error) {
	select {
	case b := <-e.inbox:
		return b, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

func (e *demuxEndpoint) Peer() net.Addr { return e.peer }

// Close removes this peer's session so a later datagram from the same
// address starts a clean one; it does not touch the shared socket.
func (e *demuxEndpoint) Close() error {
	e.demux.mu.Lock()
	delete(e.demux.sessions, e.sessID)
	e.demux.mu.Unlock()
	return nil
}
