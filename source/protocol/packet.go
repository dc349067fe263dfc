// Package protocol implements the reliability engine: the wire packet
// codec, the sender's sliding window, the receiver's reorder buffer and
// the handshake that bookends a transfer.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire-level constants. These are part of the protocol contract and must
// match on both ends of a transfer.
const (
	// MaxPayload is the largest number of data bytes a single packet carries.
	MaxPayload = 1024

	// HeaderSize is the fixed 8-byte header: seq_num, ack_num, checksum,
	// data_length, each a big-endian uint16.
	HeaderSize = 8

	// WireSize is the full on-wire size of a data/handshake/EOF packet:
	// header plus the whole payload region, transmitted even when
	// data_length is smaller (trailing bytes are sent but ignored, and
	// never enter the checksum).
	WireSize = HeaderSize + MaxPayload
)

// Classification values carried in the ack_num field.
const (
	KindData uint16 = 0 // data, prelude or EOF packet sent by the sender
	KindACK  uint16 = 1 // positive acknowledgment sent by the receiver
	KindNAK  uint16 = 2 // negative acknowledgment sent by the receiver
)

// Reserved sequence numbers for the two prelude packets. Data packets
// start at SeqFilename+1.
const (
	SeqSubdir   uint16 = 0
	SeqFilename uint16 = 1
	SeqDataBase uint16 = 2
)

// Packet is the single wire entity exchanged between sender and receiver.
type Packet struct {
	SeqNum     uint16
	AckNum     uint16
	Checksum   uint16
	DataLength uint16
	Data       [MaxPayload]byte
}

// IsEOF reports whether this is the sender's end-of-file packet: a data
// packet (ack_num == KindData) carrying zero bytes.
func (p *Packet) IsEOF() bool {
	return p.AckNum == KindData && p.DataLength == 0
}

// Payload returns the significant portion of the data region.
func (p *Packet) Payload() []byte {
	return p.Data[:p.DataLength]
}

// checksum computes the packet's checksum per §4.1: a 16-bit one's
// complement sum of seq_num, ack_num, data_length and the significant
// payload bytes, with the checksum field itself treated as zero. Every
// header field here is in host byte order — callers must compute this
// either straight after decoding or right before encoding, never on a
// half-converted packet.
func checksum(seqNum, ackNum, dataLength uint16, payload []byte) uint16 {
	sum := uint32(seqNum) + uint32(ackNum) + uint32(dataLength)
	for _, b := range payload {
		sum += uint32(b)
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Checksum16 returns the packet's checksum computed over its current
// fields, as if encoding it right now.
func (p *Packet) Checksum16() uint16 {
	return checksum(p.SeqNum, p.AckNum, p.DataLength, p.Payload())
}

// Verify reports whether the packet's stored checksum matches the
// checksum recomputed over its other fields.
func (p *Packet) Verify() bool {
	return p.Checksum == p.Checksum16()
}

// NewDataPacket builds a data/prelude/EOF packet with seq_num=seq and the
// given payload (len(payload) must be <= MaxPayload), computing and
// filling in its checksum.
func NewDataPacket(seq uint16, payload []byte) Packet {
	var p Packet
	p.SeqNum = seq
	p.AckNum = KindData
	p.DataLength = uint16(len(payload))
	copy(p.Data[:], payload)
	p.Checksum = p.Checksum16()
	return p
}

// NewControlPacket builds an ACK or NAK packet for the given sequence
// number. Control packets never carry a payload.
func NewControlPacket(kind uint16, seq uint16) Packet {
	p := Packet{SeqNum: seq, AckNum: kind}
	p.Checksum = p.Checksum16()
	return p
}

// Encode serializes p to its on-wire form. Data, prelude and EOF packets
// (ack_num == KindData) are written at the full WireSize, trailing the
// significant payload with whatever garbage currently sits in p.Data, to
// match the fixed-size wire record described in §3/§9 — that garbage
// never contributes to the checksum, which was computed over
// p.Payload() alone. ACK/NAK packets are written as the bare HeaderSize
// header (this implementation's answer to the open question in §9): the
// receiver never need echo a payload region back.
func (p *Packet) Encode() []byte {
	size := HeaderSize
	if p.AckNum == KindData {
		size = WireSize
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], p.SeqNum)
	binary.BigEndian.PutUint16(buf[2:4], p.AckNum)
	binary.BigEndian.PutUint16(buf[4:6], p.Checksum)
	binary.BigEndian.PutUint16(buf[6:8], p.DataLength)
	if size > HeaderSize {
		copy(buf[HeaderSize:], p.Data[:])
	}
	return buf
}

// ParseHeaderLoose extracts seq_num and data_length from buf without
// checksum-verifying them, for the receiver's best-guess NAK on a
// soft-corrupt datagram (§4.3). ok is false when the header itself
// can't be trusted at all: too short, or data_length inconsistent with
// what follows.
func ParseHeaderLoose(buf []byte) (seqNum uint16, dataLength uint16, ok bool) {
	if len(buf) < HeaderSize {
		return 0, 0, false
	}
	seqNum = binary.BigEndian.Uint16(buf[0:2])
	dataLength = binary.BigEndian.Uint16(buf[6:8])
	if dataLength > MaxPayload {
		return 0, 0, false
	}
	if len(buf[HeaderSize:]) < int(dataLength) {
		return 0, 0, false
	}
	return seqNum, dataLength, true
}

// Decode parses an on-wire packet. It accepts both the full WireSize
// record and a short control record (HeaderSize plus up to DataLength
// bytes of payload, possibly zero) provided the header's data_length is
// consistent with what follows. Decode fails with a non-nil error — the
// caller's cue to treat the datagram as Corrupt per §4.1 — when the byte
// count is below HeaderSize, when data_length exceeds MaxPayload, when
// there are fewer bytes available than data_length claims, or when the
// recomputed checksum doesn't match the one on the wire.
func Decode(buf []byte) (Packet, error) {
	var p Packet
	if len(buf) < HeaderSize {
		return p, fmt.Errorf("protocol: short packet: %d bytes", len(buf))
	}
	p.SeqNum = binary.BigEndian.Uint16(buf[0:2])
	p.AckNum = binary.BigEndian.Uint16(buf[2:4])
	p.Checksum = binary.BigEndian.Uint16(buf[4:6])
	p.DataLength = binary.BigEndian.Uint16(buf[6:8])

	if p.DataLength > MaxPayload {
		return p, fmt.Errorf("protocol: data_length %d exceeds MaxPayload", p.DataLength)
	}
	available := buf[HeaderSize:]
	if len(available) < int(p.DataLength) {
		return p, fmt.Errorf("protocol: truncated payload: want %d have %d", p.DataLength, len(available))
	}
	copy(p.Data[:], available[:p.DataLength])

	if !p.Verify() {
		return p, fmt.Errorf("protocol: checksum mismatch: got 0x%04x want 0x%04x", p.Checksum, p.Checksum16())
	}
	return p, nil
}
