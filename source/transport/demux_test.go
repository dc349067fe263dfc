package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDemuxerSeparatesPeers(t *testing.T) {
	demux, err := ListenDemux(0)
	if err != nil {
		t.Fatalf("ListenDemux: %v", err)
	}
	defer demux.Close()

	port := demux.conn.LocalAddr().(*net.UDPAddr).Port

	clientA, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial A: %v", err)
	}
	defer clientA.Close()
	clientB, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial B: %v", err)
	}
	defer clientB.Close()

	if _, err := clientA.Write([]byte("from-a")); err != nil {
		t.Fatalf("write A: %v", err)
	}
	if _, err := clientB.Write([]byte("from-b")); err != nil {
		t.Fatalf("write B: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := map[string][]byte{}
	for i := 0; i < 2; i++ {
		ep, err := demux.Accept(ctx)
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		b, err := ep.Recv(time.Second)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		seen[ep.Peer().String()] = b
	}

	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct peers, got %d", len(seen))
	}
	found := map[string]bool{}
	for _, b := range seen {
		found[string(b)] = true
	}
	if !found["from-a"] || !found["from-b"] {
		t.Errorf("expected to see both payloads, got %v", seen)
	}
}
