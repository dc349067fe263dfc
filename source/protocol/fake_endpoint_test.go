package protocol

import (
	"net"
	"time"

	"rft/source/transport"
)

// fakeEndpoint is a transport.Endpoint test double driven entirely by
// the test: outbound sends land in Sent, inbound datagrams are queued
// onto Inbox ahead of time (or injected mid-test).
type fakeEndpoint struct {
	Sent  [][]byte
	Inbox [][]byte
}

func (f *fakeEndpoint) Send(b []byte) error {
	cp := append([]byte(nil), b...)
	f.Sent = append(f.Sent, cp)
	return nil
}

func (f *fakeEndpoint) Recv(timeout time.Duration) ([]byte, error) {
	if len(f.Inbox) == 0 {
		return nil, transport.ErrTimeout
	}
	b := f.Inbox[0]
	f.Inbox = f.Inbox[1:]
	return b, nil
}

func (f *fakeEndpoint) Peer() net.Addr { return &net.UDPAddr{} }
func (f *fakeEndpoint) Close() error   { return nil }

func (f *fakeEndpoint) queue(pkt Packet) {
	f.Inbox = append(f.Inbox, pkt.Encode())
}

func (f *fakeEndpoint) lastSent() Packet {
	pkt, err := Decode(f.Sent[len(f.Sent)-1])
	if err != nil {
		panic(err)
	}
	return pkt
}

// memSource is a ByteSource over an in-memory slice, for tests that
// don't need an actual file on disk.
type memSource struct {
	data []byte
	off  int
}

func (m *memSource) ReadUpTo(n int) ([]byte, error) {
	if m.off >= len(m.data) {
		return nil, nil
	}
	end := m.off + n
	if end > len(m.data) {
		end = len(m.data)
	}
	chunk := m.data[m.off:end]
	m.off = end
	return chunk, nil
}

// memSink is a Sink over an in-memory buffer.
type memSink struct {
	buf []byte
}

func (m *memSink) Write(b []byte) error {
	m.buf = append(m.buf, b...)
	return nil
}

func (m *memSink) Close() error { return nil }
