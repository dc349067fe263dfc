package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rft/pkg/logger"
	"rft/pkg/metrics"
	"rft/pkg/xfid"
	"rft/source/protocol"
	"rft/source/sink"
	"rft/source/transport"
)

func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Listen for and receive one file transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := cfgManager.Snapshot()
			id := xfid.New()
			log := logger.New(id)

			ep, err := transport.Listen(s.Port)
			if err != nil {
				return err
			}
			defer ep.Close()

			var obs protocol.Observer = protocol.NopObserver
			if s.MetricsAddr != "" {
				coll := metrics.New(id)
				obs = coll
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				go func() {
					if err := coll.Serve(ctx, s.MetricsAddr); err != nil {
						log.Errorf("metrics server: %v", err)
					}
				}()
			}

			log.Infof("listening on :%d, writing under %s", s.Port, s.Root)
			receiver := protocol.NewReceiver(ep, s.Config, obs, log)
			err = receiver.ReceiveTransfer(func(subdir, filename string) (protocol.Sink, error) {
				log.Infof("prelude received, creating sink for %s/%s", subdir, filename)
				return sink.Create(s.Root, subdir, filename)
			})
			if err != nil {
				return fmt.Errorf("recv: %w", err)
			}
			log.Infof("transfer complete")
			return nil
		},
	}
	return cmd
}
