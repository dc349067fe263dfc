// Package metrics implements the protocol.Observer collaborator with
// Prometheus counters and gauges, served over HTTP for scraping. It
// never influences protocol decisions — it only counts what already
// happened.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is a prometheus-backed protocol.Observer, registered on
// its own registry rather than the global default so a process can run
// more than one transfer's metrics side by side without collisions.
type Collector struct {
	registry *prometheus.Registry

	packetsSent          prometheus.Counter
	packetsRetransmitted prometheus.Counter
	acksReceived         prometheus.Counter
	naksReceived         prometheus.Counter
	corruptDropped       prometheus.Counter
	bytesWritten         prometheus.Counter
	windowOccupancy      prometheus.Gauge
}

// New builds a Collector whose series carry xfer as a constant "xfer"
// label, telling transfers apart once scraped; pass an empty string to
// omit the label. Metric names are the same for every Collector.
func New(xfer string) *Collector {
	labels := prometheus.Labels{}
	if xfer != "" {
		labels["xfer"] = xfer
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.packetsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_packets_sent_total",
		Help:        "Data/prelude/EOF packets transmitted by the sender.",
		ConstLabels: labels,
	})
	c.packetsRetransmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_packets_retransmitted_total",
		Help:        "Packets retransmitted on timeout or NAK.",
		ConstLabels: labels,
	})
	c.acksReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_acks_received_total",
		Help:        "ACKs received by the sender.",
		ConstLabels: labels,
	})
	c.naksReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_naks_received_total",
		Help:        "NAKs observed (sent by the receiver, or received by the sender).",
		ConstLabels: labels,
	})
	c.corruptDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_corrupt_dropped_total",
		Help:        "Datagrams dropped for failing checksum verification.",
		ConstLabels: labels,
	})
	c.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "rft_bytes_written_total",
		Help:        "Payload bytes written to the sink.",
		ConstLabels: labels,
	})
	c.windowOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rft_window_occupancy",
		Help:        "Current number of in-flight unacknowledged packets.",
		ConstLabels: labels,
	})

	c.registry.MustRegister(
		c.packetsSent, c.packetsRetransmitted, c.acksReceived,
		c.naksReceived, c.corruptDropped, c.bytesWritten, c.windowOccupancy,
	)
	return c
}

func (c *Collector) PacketSent()          { c.packetsSent.Inc() }
func (c *Collector) PacketRetransmitted() { c.packetsRetransmitted.Inc() }
func (c *Collector) ACKReceived()         { c.acksReceived.Inc() }
func (c *Collector) NAKReceived()         { c.naksReceived.Inc() }
func (c *Collector) CorruptDropped()      { c.corruptDropped.Inc() }
func (c *Collector) BytesWritten(n int)   { c.bytesWritten.Add(float64(n)) }
func (c *Collector) WindowOccupancy(n int) { c.windowOccupancy.Set(float64(n)) }

// Serve starts a scrape endpoint on addr and blocks until ctx is
// cancelled or the server fails. Callers typically run it in its own
// goroutine.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics: serve %s: %w", addr, err)
		}
		return nil
	}
}
