package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rft/pkg/config"
	"rft/pkg/logger"
	"rft/pkg/metrics"
	"rft/pkg/xfid"
	"rft/source/protocol"
	"rft/source/sink"
	"rft/source/transport"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept transfers from any number of peers on one bound socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := cfgManager.Snapshot()
			log := logger.New("")

			demux, err := transport.ListenDemux(s.Port)
			if err != nil {
				return err
			}
			defer demux.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// One metrics server and one Collector for the whole daemon:
			// every accepted transfer reports into it, so its series are
			// totals across all peers and carry no per-transfer xfer label.
			var coll *metrics.Collector
			if s.MetricsAddr != "" {
				coll = metrics.New("")
				go func() {
					if err := coll.Serve(ctx, s.MetricsAddr); err != nil {
						log.Errorf("metrics server: %v", err)
					}
				}()
			}

			log.Infof("serving on :%d, writing under %s", s.Port, s.Root)
			for {
				ep, err := demux.Accept(ctx)
				if err != nil {
					log.Infof("shutting down: %v", err)
					return nil
				}
				go acceptTransfer(ep, cfgManager.Snapshot(), coll)
			}
		},
	}
	return cmd
}

func acceptTransfer(ep transport.Endpoint, s config.Settings, coll *metrics.Collector) {
	id := xfid.New()
	log := logger.New(id)
	log.Infof("new peer %s", ep.Peer())

	var obs protocol.Observer = protocol.NopObserver
	if coll != nil {
		obs = coll
	}

	receiver := protocol.NewReceiver(ep, s.Config, obs, log)
	err := receiver.ReceiveTransfer(func(subdir, filename string) (protocol.Sink, error) {
		return sink.Create(s.Root, subdir, filename)
	})
	if err != nil {
		log.Errorf("transfer from %s failed: %v", ep.Peer(), err)
		return
	}
	log.Infof("transfer from %s complete", ep.Peer())
}
