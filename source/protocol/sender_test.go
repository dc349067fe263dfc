package protocol

import (
	"errors"
	"testing"
	"time"
)

func testSenderConfig() Config {
	return Config{
		WindowSize:     4,
		PollInterval:   time.Millisecond,
		RetxTimeout:    10 * time.Millisecond,
		MaxRetransmits: 3,
	}
}

func TestFillWindowRespectsWindowSize(t *testing.T) {
	ep := &fakeEndpoint{}
	s := NewSender(ep, testSenderConfig(), nil, nil)
	ck := &chunker{src: &memSource{data: make([]byte, 100*MaxPayload)}}

	if err := s.fillWindow(ck); err != nil {
		t.Fatalf("fillWindow: %v", err)
	}

	if int(s.nextSeq-s.base) != s.cfg.WindowSize {
		t.Errorf("expected window to fill to %d packets, got %d", s.cfg.WindowSize, s.nextSeq-s.base)
	}
	if len(ep.Sent) != s.cfg.WindowSize {
		t.Errorf("expected %d packets sent, got %d", s.cfg.WindowSize, len(ep.Sent))
	}
}

func TestHandleACKAdvancesBase(t *testing.T) {
	ep := &fakeEndpoint{}
	s := NewSender(ep, testSenderConfig(), nil, nil)
	ck := &chunker{src: &memSource{data: make([]byte, 100*MaxPayload)}}
	if err := s.fillWindow(ck); err != nil {
		t.Fatalf("fillWindow: %v", err)
	}

	s.handleACK(0)
	s.handleACK(1)
	if s.base != 2 {
		t.Errorf("expected base=2 after acking seq 0 and 1, got %d", s.base)
	}

	// Out-of-order ACK for seq 3 must not advance base past the gap at seq 2.
	s.handleACK(3)
	if s.base != 2 {
		t.Errorf("expected base to stay at 2 with seq 2 still unacked, got %d", s.base)
	}

	s.handleACK(2)
	if s.base != 4 {
		t.Errorf("expected base to jump to 4 once the gap closes, got %d", s.base)
	}
}

func TestHandleNAKRetransmits(t *testing.T) {
	ep := &fakeEndpoint{}
	s := NewSender(ep, testSenderConfig(), nil, nil)
	ck := &chunker{src: &memSource{data: make([]byte, 100*MaxPayload)}}
	if err := s.fillWindow(ck); err != nil {
		t.Fatalf("fillWindow: %v", err)
	}

	sentBefore := len(ep.Sent)
	s.handleNAK(1)
	if len(ep.Sent) != sentBefore+1 {
		t.Fatalf("expected a retransmission to be sent, sent count %d -> %d", sentBefore, len(ep.Sent))
	}
	resent := ep.lastSent()
	if resent.SeqNum != 1 {
		t.Errorf("expected retransmitted packet to carry seq 1, got %d", resent.SeqNum)
	}
}

func TestRetransmitExpiredGivesUpAfterMaxRetransmits(t *testing.T) {
	ep := &fakeEndpoint{}
	cfg := testSenderConfig()
	cfg.RetxTimeout = 0 // every call to retransmitExpired treats the left edge as due
	s := NewSender(ep, cfg, nil, nil)
	ck := &chunker{src: &memSource{data: make([]byte, 100*MaxPayload)}}
	if err := s.fillWindow(ck); err != nil {
		t.Fatalf("fillWindow: %v", err)
	}

	var err error
	for i := 0; i < cfg.MaxRetransmits+1; i++ {
		err = s.retransmitExpired()
		if err != nil {
			break
		}
	}
	if !errors.Is(err, ErrPeerUnreachable) {
		t.Fatalf("expected ErrPeerUnreachable, got %v", err)
	}
}
