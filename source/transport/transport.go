// Package transport adapts a real UDP socket to the narrow datagram
// endpoint interface the reliability engine depends on (§6): send a
// datagram, receive one with a bounded wait, nothing else. It is the
// only package in this module that touches net.UDPConn directly, so the
// protocol engine in source/protocol never has to reason about sockets,
// non-blocking mode or address families.
package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrTimeout is returned by Endpoint.Recv when no datagram arrived
// before the deadline. It is the scheduler loop's cue to run its timer
// maintenance (§4.2 step 4, §4.5) instead of dispatching a packet.
var ErrTimeout = errors.New("transport: receive timed out")

// Endpoint is the datagram collaborator the protocol engine consumes.
// A single Endpoint is used for both send and receive by one scheduler
// loop; it is never shared across loops (§5).
type Endpoint interface {
	// Send transmits b to the endpoint's current peer. Send failures are
	// transient from the protocol engine's point of view: the caller
	// leaves the packet in its window/buffer and retries on the next
	// timer or duplicate event.
	Send(b []byte) error

	// Recv waits up to timeout for a datagram and returns its bytes.
	// It returns ErrTimeout, not a zero-length slice, when nothing
	// arrived in time.
	Recv(timeout time.Duration) ([]byte, error)

	// Peer returns the address Send currently targets. For a Dial'd
	// endpoint this is fixed from construction; for a Listen'd endpoint
	// it becomes valid only after the first Recv observes a peer.
	Peer() net.Addr

	// Close releases the underlying socket.
	Close() error
}

// udpEndpoint implements Endpoint over a connectionless net.UDPConn. It
// supports two modes: dialed (peer fixed at construction, used by the
// sender) and listening (peer learned from the first inbound datagram,
// used by the receiver).
type udpEndpoint struct {
	conn     *net.UDPConn
	dialed   bool
	peer     net.Addr
	readBuf  []byte
}

// Dial opens a UDP socket connected to host:port. The sender uses this:
// its peer is the receiver's known address from the start.
func Dial(host string, port int) (Endpoint, error) {
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s:%d: %w", host, port, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", raddr, err)
	}
	return &udpEndpoint{conn: conn, dialed: true, peer: raddr, readBuf: make([]byte, protocolMaxDatagram)}, nil
}

// Listen binds a UDP socket on port across all interfaces. The receiver
// uses this: its peer is unknown until the first datagram arrives.
func Listen(port int) (Endpoint, error) {
	laddr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on port %d: %w", port, err)
	}
	return &udpEndpoint{conn: conn, dialed: false, readBuf: make([]byte, protocolMaxDatagram)}, nil
}

// protocolMaxDatagram is large enough to hold the biggest legal wire
// record (header + MAX_PAYLOAD) with headroom; it is not itself a
// protocol constant, just a socket read-buffer size.
const protocolMaxDatagram = 2048

func (e *udpEndpoint) Send(b []byte) error {
	if e.dialed {
		_, err := e.conn.Write(b)
		return err
	}
	if e.peer == nil {
		return errors.New("transport: no peer known yet, nothing received")
	}
	_, err := e.conn.WriteToUDP(b, e.peer.(*net.UDPAddr))
	return err
}

func (e *udpEndpoint) Recv(timeout time.Duration) ([]byte, error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	if e.dialed {
		n, err := e.conn.Read(e.readBuf)
		if err != nil {
			if isTimeout(err) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		out := make([]byte, n)
		copy(out, e.readBuf[:n])
		return out, nil
	}
	n, addr, err := e.conn.ReadFromUDP(e.readBuf)
	if err != nil {
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	e.peer = addr
	out := make([]byte, n)
	copy(out, e.readBuf[:n])
	return out, nil
}

func (e *udpEndpoint) Peer() net.Addr { return e.peer }

func (e *udpEndpoint) Close() error { return e.conn.Close() }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
