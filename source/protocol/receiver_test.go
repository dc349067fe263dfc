package protocol

import "testing"

func testReceiverConfig() Config {
	return Config{WindowSize: 4}
}

func TestReceiverBuffersOutOfOrderAndDrainsInOrder(t *testing.T) {
	ep := &fakeEndpoint{}
	r := NewReceiver(ep, testReceiverConfig(), nil, nil)

	ep.queue(NewDataPacket(SeqSubdir, []byte("d")))
	ep.queue(NewDataPacket(SeqDataBase, []byte("AA")))        // arrives before its predecessor
	ep.queue(NewDataPacket(SeqFilename, []byte("f.txt")))     // fills the gap
	ep.queue(NewDataPacket(SeqDataBase+1, []byte("BB")))
	ep.queue(NewDataPacket(SeqDataBase+2, nil)) // EOF

	sink := &memSink{}
	err := r.ReceiveTransfer(func(subdir, filename string) (Sink, error) {
		if subdir != "d" || filename != "f.txt" {
			t.Errorf("unexpected prelude: subdir=%q filename=%q", subdir, filename)
		}
		return sink, nil
	})
	if err != nil {
		t.Fatalf("ReceiveTransfer: %v", err)
	}
	if string(sink.buf) != "AABB" {
		t.Errorf("expected sink contents %q, got %q", "AABB", sink.buf)
	}
	if !r.finished {
		t.Error("expected receiver to be finished")
	}
}

func TestClassifyDuplicateReAcksWithoutRebuffering(t *testing.T) {
	ep := &fakeEndpoint{}
	r := NewReceiver(ep, testReceiverConfig(), nil, nil)
	r.expectedSeq = 5

	r.classify(NewDataPacket(2, []byte("stale")))
	if _, buffered := r.buffer[2]; buffered {
		t.Error("a duplicate below expectedSeq must not be buffered")
	}
	if len(ep.Sent) != 1 {
		t.Fatalf("expected exactly one ACK sent, got %d", len(ep.Sent))
	}
	ack := ep.lastSent()
	if ack.AckNum != KindACK || ack.SeqNum != 2 {
		t.Errorf("expected ACK for seq=2, got kind=%d seq=%d", ack.AckNum, ack.SeqNum)
	}
}

func TestClassifyOutOfWindowStillAcks(t *testing.T) {
	ep := &fakeEndpoint{}
	r := NewReceiver(ep, testReceiverConfig(), nil, nil)

	r.classify(NewDataPacket(50, []byte("far")))
	if _, buffered := r.buffer[50]; buffered {
		t.Error("a packet far outside the window must not be buffered")
	}
	if len(ep.Sent) != 1 {
		t.Fatalf("expected an ACK even for an out-of-window packet, got %d sent", len(ep.Sent))
	}
}

func TestHandleCorruptSoftCorruptSendsNAK(t *testing.T) {
	ep := &fakeEndpoint{}
	r := NewReceiver(ep, testReceiverConfig(), nil, nil)

	pkt := NewDataPacket(1, []byte("data"))
	encoded := pkt.Encode()
	encoded[4] ^= 0xFF // corrupt only the checksum, seq_num stays readable

	_, derr := Decode(encoded)
	if derr == nil {
		t.Fatal("expected Decode to fail on a checksum-corrupted packet")
	}
	r.handleCorrupt(encoded, derr)

	if len(ep.Sent) != 1 {
		t.Fatalf("expected a best-guess NAK, got %d datagrams sent", len(ep.Sent))
	}
	nak := ep.lastSent()
	if nak.AckNum != KindNAK || nak.SeqNum != 1 {
		t.Errorf("expected NAK for seq=1, got kind=%d seq=%d", nak.AckNum, nak.SeqNum)
	}
}

func TestHandleCorruptHardCorruptDropsSilently(t *testing.T) {
	ep := &fakeEndpoint{}
	r := NewReceiver(ep, testReceiverConfig(), nil, nil)

	r.handleCorrupt([]byte{0x00, 0x01}, errTooShort)
	if len(ep.Sent) != 0 {
		t.Errorf("expected no datagram sent for an unparsable header, got %d", len(ep.Sent))
	}
}

var errTooShort = errTestSentinel("too short")

type errTestSentinel string

func (e errTestSentinel) Error() string { return string(e) }
