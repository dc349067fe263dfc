package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"rft/pkg/logger"
	"rft/pkg/metrics"
	"rft/pkg/xfid"
	"rft/source/protocol"
	"rft/source/source"
	"rft/source/transport"
)

func sendCmd() *cobra.Command {
	var subdir string

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a file to a listening receiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := cfgManager.Snapshot()
			id := xfid.New()
			log := logger.New(id)

			ep, err := transport.Dial(s.Host, s.Port)
			if err != nil {
				return err
			}
			defer ep.Close()

			path := args[0]
			src, err := source.Open(path)
			if err != nil {
				return err
			}
			defer src.Close()

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

			log.Infof("sending %s to %s:%d (window=%d)", path, s.Host, s.Port, s.WindowSize)
			sender := protocol.NewSender(ep, s.Config, obs, log)
			if err := sender.SendTransfer(src, subdir, filepath.Base(path)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			log.Infof("transfer complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&subdir, "subdir", "", "subdirectory to report to the receiver (may be empty)")
	return cmd
}
