package protocol

import (
	"errors"
	"fmt"
	"time"

	"rft/source/transport"
)

// ErrPeerUnreachable is returned by SendTransfer when the left-edge
// packet of the window has been retransmitted MaxRetransmits times
// without the window advancing (§4.2, §7).
var ErrPeerUnreachable = errors.New("protocol: peer unreachable, giving up retransmitting")

// ErrSourceError wraps a fatal failure reading the sender's input file
// (§7). It is never recovered from; the transfer aborts.
var ErrSourceError = errors.New("protocol: source error")

// ByteSource is the sender's source collaborator (§6): it yields the
// file's bytes in chunks, returning a zero-length read at EOF.
type ByteSource interface {
	ReadUpTo(n int) ([]byte, error)
}

type windowSlot struct {
	pkt         Packet
	lastSend    time.Time
	acked       bool
	inUse       bool
	retransmits int
}

// Sender drives a single file through the window manager described in
// §4.2. It owns no goroutines: SendTransfer runs the whole scheduler
// loop on the calling goroutine, with its one suspension point being
// Endpoint.Recv (§4.5).
type Sender struct {
	ep  transport.Endpoint
	cfg Config
	obs Observer
	log Logger

	window  []windowSlot
	base    uint16
	nextSeq uint16

	doneReading bool
	hasEOFSeq   bool
	eofSeq      uint16
	eofAcked    bool
}

// NewSender constructs a Sender over ep. obs and log may be nil, in
// which case NopObserver/NopLogger are used.
func NewSender(ep transport.Endpoint, cfg Config, obs Observer, log Logger) *Sender {
	if obs == nil {
		obs = NopObserver
	}
	if log == nil {
		log = NopLogger
	}
	return &Sender{
		ep:     ep,
		cfg:    cfg,
		obs:    obs,
		log:    log,
		window: make([]windowSlot, cfg.WindowSize),
	}
}

// chunker sequences the two prelude payloads ahead of the file's bytes,
// so the fill-window loop below can treat prelude and data uniformly.
type chunker struct {
	pending [][]byte
	src     ByteSource
	atEOF   bool
}

// next returns the next payload to send and whether it signals EOF.
// Prelude chunks are returned even when empty (an empty subdirectory is
// legal); EOF is only signalled once the file source itself returns a
// zero-length read.
func (c *chunker) next(maxPayload int) (payload []byte, isEOF bool, err error) {
	if len(c.pending) > 0 {
		payload = c.pending[0]
		c.pending = c.pending[1:]
		return payload, false, nil
	}
	b, err := c.src.ReadUpTo(maxPayload)
	if err != nil {
		return nil, false, err
	}
	if len(b) == 0 {
		c.atEOF = true
		return nil, true, nil
	}
	return b, false, nil
}

// SendTransfer sends subdir and filename as the prelude, then src's
// bytes, then the EOF packet, blocking until EOF is acknowledged. It
// returns ErrPeerUnreachable if the link appears dead (§4.2) or a
// wrapped error if src itself fails (fatal per §7).
func (s *Sender) SendTransfer(src ByteSource, subdir, filename string) error {
	ck := &chunker{pending: [][]byte{[]byte(subdir), []byte(filename)}, src: src}

	for !(s.doneReading && s.base == s.nextSeq && s.eofAcked) {
		if err := s.fillWindow(ck); err != nil {
			return fmt.Errorf("%w: %v", ErrSourceError, err)
		}

		data, err := s.ep.Recv(s.cfg.PollInterval)
		switch {
		case errors.Is(err, transport.ErrTimeout):
			if err := s.retransmitExpired(); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("protocol: receiving: %w", err)
		default:
			s.handleDatagram(data)
		}
	}
	return nil
}

// fillWindow implements §4.2 step 1: while there is room in the window
// and the source isn't exhausted, read a chunk, frame it, store it and
// transmit it.
func (s *Sender) fillWindow(ck *chunker) error {
	for !s.doneReading && s.nextSeq < s.base+uint16(s.cfg.WindowSize) {
		payload, isEOF, err := ck.next(MaxPayload)
		if err != nil {
			return err
		}

		seq := s.nextSeq
		var pkt Packet
		if isEOF {
			pkt = NewDataPacket(seq, nil)
			s.hasEOFSeq = true
			s.eofSeq = seq
			s.doneReading = true
		} else {
			pkt = NewDataPacket(seq, payload)
		}

		s.window[seq%uint16(s.cfg.WindowSize)] = windowSlot{
			pkt:      pkt,
			lastSend: time.Now(),
			inUse:    true,
		}
		if err := s.ep.Send(pkt.Encode()); err != nil {
			s.log.Warnf("send seq=%d failed: %v", seq, err)
		} else {
			s.obs.PacketSent()
			s.log.Debugf("sent seq=%d len=%d eof=%v", seq, pkt.DataLength, isEOF)
		}
		s.nextSeq++
		s.obs.WindowOccupancy(int(s.nextSeq - s.base))
	}
	return nil
}

// handleDatagram implements §4.2 step 3: decode, discard silently if
// corrupt, else dispatch on ack_num.
func (s *Sender) handleDatagram(data []byte) {
	pkt, err := Decode(data)
	if err != nil {
		s.obs.CorruptDropped()
		s.log.Debugf("dropped corrupt datagram: %v", err)
		return
	}

	switch pkt.AckNum {
	case KindACK:
		s.obs.ACKReceived()
		s.handleACK(pkt.SeqNum)
	case KindNAK:
		s.obs.NAKReceived()
		s.handleNAK(pkt.SeqNum)
	default:
		s.log.Debugf("unexpected ack_num=%d on seq=%d, ignoring", pkt.AckNum, pkt.SeqNum)
	}
}

func (s *Sender) inWindow(seq uint16) bool {
	return seq >= s.base && seq < s.nextSeq
}

func (s *Sender) handleACK(seq uint16) {
	if !s.inWindow(seq) {
		s.log.Debugf("stale ACK for seq=%d (base=%d next=%d), ignoring", seq, s.base, s.nextSeq)
		return
	}
	s.window[seq%uint16(s.cfg.WindowSize)].acked = true
	s.log.Debugf("ACK seq=%d (base=%d next=%d)", seq, s.base, s.nextSeq)
	if s.hasEOFSeq && seq == s.eofSeq {
		s.eofAcked = true
	}
	for s.base < s.nextSeq && s.window[s.base%uint16(s.cfg.WindowSize)].acked {
		s.window[s.base%uint16(s.cfg.WindowSize)] = windowSlot{}
		s.base++
	}
}

func (s *Sender) handleNAK(seq uint16) {
	if !s.inWindow(seq) {
		return
	}
	slot := &s.window[seq%uint16(s.cfg.WindowSize)]
	if slot.acked {
		return
	}
	s.retransmit(seq, slot)
}

// retransmitExpired implements §4.2 step 4: on a poll timeout, resend
// every unacked in-window packet whose last send is older than
// RetxTimeout, and fail the transfer if the left-edge packet has been
// retransmitted too many times without the window advancing.
func (s *Sender) retransmitExpired() error {
	now := time.Now()
	for seq := s.base; seq != s.nextSeq; seq++ {
		slot := &s.window[seq%uint16(s.cfg.WindowSize)]
		if !slot.inUse || slot.acked {
			continue
		}
		if now.Sub(slot.lastSend) >= s.cfg.RetxTimeout {
			s.retransmit(seq, slot)
		}
	}

	left := &s.window[s.base%uint16(s.cfg.WindowSize)]
	if left.inUse && !left.acked && left.retransmits >= s.cfg.MaxRetransmits {
		return ErrPeerUnreachable
	}
	return nil
}

func (s *Sender) retransmit(seq uint16, slot *windowSlot) {
	slot.lastSend = time.Now()
	slot.retransmits++
	if err := s.ep.Send(slot.pkt.Encode()); err != nil {
		s.log.Warnf("retransmit seq=%d failed: %v", seq, err)
		return
	}
	s.obs.PacketRetransmitted()
	s.log.Debugf("retransmitted seq=%d (attempt %d)", seq, slot.retransmits)
}
