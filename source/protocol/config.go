package protocol

import "time"

// Config collects the tunable constants from §6. DefaultConfig matches
// the specification's reference values; tests shrink WindowSize and the
// timeouts to keep runs fast without changing the algorithm.
type Config struct {
	WindowSize     int
	PollInterval   time.Duration
	RetxTimeout    time.Duration
	MaxRetransmits int
}

// DefaultConfig returns the specification's reference constants:
// WINDOW_SIZE=10, POLL_INTERVAL=100ms, RETX_TIMEOUT=1000ms,
// MAX_RETRANSMITS=100.
func DefaultConfig() Config {
	return Config{
		WindowSize:     10,
		PollInterval:   100 * time.Millisecond,
		RetxTimeout:    1000 * time.Millisecond,
		MaxRetransmits: 100,
	}
}

// Logger is the narrow logging surface the protocol engine calls
// through; pkg/logger satisfies it, and tests can pass a no-op or a
// t.Logf-backed stub without pulling in logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives best-effort notifications of protocol events for
// metrics purposes. It never influences protocol decisions (see
// SPEC_FULL.md's domain-stack notes). NopObserver is a ready-made no-op.
type Observer interface {
	PacketSent()
	PacketRetransmitted()
	ACKReceived()
	NAKReceived()
	CorruptDropped()
	BytesWritten(n int)
	WindowOccupancy(n int)
}

type nopObserver struct{}

func (nopObserver) PacketSent()          {}
func (nopObserver) PacketRetransmitted() {}
func (nopObserver) ACKReceived()         {}
func (nopObserver) NAKReceived()         {}
func (nopObserver) CorruptDropped()      {}
func (nopObserver) BytesWritten(int)     {}
func (nopObserver) WindowOccupancy(int)  {}

// NopObserver is a shared Observer that discards every event.
var NopObserver Observer = nopObserver{}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// NopLogger is a shared Logger that discards every message.
var NopLogger Logger = nopLogger{}
