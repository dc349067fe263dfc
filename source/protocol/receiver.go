package protocol

import (
	"errors"
	"fmt"

	"rft/source/transport"
)

// ErrSinkError wraps a fatal failure writing or opening the receiver's
// output file (§7). It is never recovered from; the transfer aborts.
var ErrSinkError = errors.New("protocol: sink error")

// Sink is the receiver's byte-sink collaborator (§6).
type Sink interface {
	Write(b []byte) error
	Close() error
}

// SinkFactory opens the sink once both prelude packets have been
// delivered in order, i.e. once subdir and filename are both known.
type SinkFactory func(subdir, filename string) (Sink, error)

// Receiver drives the reorder buffer described in §4.3. Like Sender, it
// runs its whole scheduler loop on the calling goroutine.
type Receiver struct {
	ep  transport.Endpoint
	cfg Config
	obs Observer
	log Logger

	expectedSeq uint16
	buffer      map[uint16]Packet

	subdir   string
	filename string
	sink     Sink
	finished bool
}

// NewReceiver constructs a Receiver over ep. obs and log may be nil.
func NewReceiver(ep transport.Endpoint, cfg Config, obs Observer, log Logger) *Receiver {
	if obs == nil {
		obs = NopObserver
	}
	if log == nil {
		log = NopLogger
	}
	return &Receiver{
		ep:     ep,
		cfg:    cfg,
		obs:    obs,
		log:    log,
		buffer: make(map[uint16]Packet),
	}
}

// ReceiveTransfer runs until the EOF packet has been delivered in order
// and its ACK sent, opening the sink via newSink once the prelude
// completes. It returns a wrapped ErrSinkError on a fatal write/open
// failure (§7).
func (r *Receiver) ReceiveTransfer(newSink SinkFactory) error {
	for !r.finished {
		data, err := r.ep.Recv(r.cfg.PollInterval)
		switch {
		case errors.Is(err, transport.ErrTimeout):
			continue
		case err != nil:
			return fmt.Errorf("protocol: receiving: %w", err)
		}

		pkt, derr := Decode(data)
		if derr != nil {
			r.obs.CorruptDropped()
			r.handleCorrupt(data, derr)
			continue
		}

		r.classify(pkt)
		if err := r.drain(newSink); err != nil {
			return err
		}
	}
	return nil
}

// handleCorrupt implements §4.3 step 1: a hard-corrupt datagram (header
// itself unparsable) is silently dropped — the sender's RTO covers it.
// A soft-corrupt datagram (header parses, only the checksum disagrees)
// gets a best-guess NAK if its claimed sequence number is plausibly
// in-window.
func (r *Receiver) handleCorrupt(data []byte, cause error) {
	seq, dataLength, ok := ParseHeaderLoose(data)
	if !ok {
		r.log.Debugf("dropped hard-corrupt datagram: %v", cause)
		return
	}
	if seq < r.expectedSeq || seq >= r.expectedSeq+uint16(r.cfg.WindowSize) {
		r.log.Debugf("dropped soft-corrupt datagram outside window (seq guess=%d, len=%d): %v", seq, dataLength, cause)
		return
	}
	r.log.Debugf("soft-corrupt datagram, best-guess seq=%d: %v", seq, cause)
	r.sendControl(KindNAK, seq)
}

// classify implements §4.3 step 2.
func (r *Receiver) classify(pkt Packet) {
	seq := pkt.SeqNum
	switch {
	case seq < r.expectedSeq:
		// Duplicate: a delayed ACK may have been lost, so ACK again.
		r.sendControl(KindACK, seq)
	case seq >= r.expectedSeq+uint16(r.cfg.WindowSize):
		// Out of window: defensive ACK, harmless to the sender.
		r.sendControl(KindACK, seq)
	default:
		if _, buffered := r.buffer[seq]; !buffered {
			r.buffer[seq] = pkt
		}
		r.sendControl(KindACK, seq)
	}
}

// drain implements §4.3 step 3: pop the contiguous prefix starting at
// expectedSeq and deliver each packet to the sink (or the prelude/EOF
// handling) in order.
func (r *Receiver) drain(newSink SinkFactory) error {
	for {
		pkt, ok := r.buffer[r.expectedSeq]
		if !ok {
			return nil
		}
		delete(r.buffer, r.expectedSeq)

		switch {
		case pkt.SeqNum == SeqSubdir:
			r.subdir = string(pkt.Payload())
			r.log.Debugf("prelude: subdir=%q", r.subdir)

		case pkt.SeqNum == SeqFilename:
			r.filename = string(pkt.Payload())
			sink, err := newSink(r.subdir, r.filename)
			if err != nil {
				return fmt.Errorf("%w: opening sink for %s/%s: %v", ErrSinkError, r.subdir, r.filename, err)
			}
			r.sink = sink
			r.log.Infof("prelude complete, receiving into %s/%s", r.subdir, r.filename)

		case pkt.IsEOF():
			if r.sink != nil {
				if err := r.sink.Close(); err != nil {
					return fmt.Errorf("%w: closing sink: %v", ErrSinkError, err)
				}
			}
			r.finished = true
			r.expectedSeq++
			r.log.Infof("transfer complete: %s/%s", r.subdir, r.filename)
			return nil

		default:
			if err := r.sink.Write(pkt.Payload()); err != nil {
				return fmt.Errorf("%w: %v", ErrSinkError, err)
			}
			r.obs.BytesWritten(int(pkt.DataLength))
		}
		r.expectedSeq++
	}
}

func (r *Receiver) sendControl(kind uint16, seq uint16) {
	pkt := NewControlPacket(kind, seq)
	if err := r.ep.Send(pkt.Encode()); err != nil {
		r.log.Warnf("sending %s for seq=%d failed: %v", controlName(kind), seq, err)
		return
	}
	if kind == KindNAK {
		r.obs.NAKReceived()
	}
}

func controlName(kind uint16) string {
	if kind == KindNAK {
		return "NAK"
	}
	return "ACK"
}
