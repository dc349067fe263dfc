// Package cmd wires the cobra CLI: a root command carrying the shared
// flags, and send/recv subcommands that each drive one transfer.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rft/pkg/config"
	"rft/pkg/logger"
)

const version = "1.0.0"

var cfgManager = config.New()
var cfgFile string

// Root returns the top-level cobra command. main.go calls Execute() on
// it inside a recover so a panic anywhere under a subcommand surfaces
// as a Fatal log line instead of a raw stack trace.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:     "rft",
		Short:   "Reliable file transfer over unreliable UDP",
		Version: version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfgManager.Load(cfgFile); err != nil {
				return err
			}
			s := cfgManager.Snapshot()
			if err := logger.Configure(logger.Options{Level: s.LogLevel, RotateFile: s.LogFile}); err != nil {
				return err
			}
			cfgManager.WatchTuning(func(next config.Settings) {
				logger.Info("config reloaded: window=%d retx=%s max_retransmits=%d", next.WindowSize, next.RetxTimeout, next.MaxRetransmits)
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to rft.yaml (default: search ./ ~/.rft /etc/rft)")
	root.PersistentFlags().String("host", "127.0.0.1", "peer host (sender) or bind host (receiver)")
	root.PersistentFlags().Int("port", 9000, "UDP port")
	root.PersistentFlags().String("root", ".", "root directory to read from / write into")
	root.PersistentFlags().String("log-level", "info", "debug|info|warn|error")
	root.PersistentFlags().String("log-file", "", "rotate logs into this file in addition to stderr")
	root.PersistentFlags().String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	root.PersistentFlags().Int("window-size", 10, "sliding window size")
	root.PersistentFlags().Int("max-retransmits", 100, "consecutive retransmits of the oldest packet before giving up")

	bindAll(cfgManager, root,
		"host", "port", "root", "log_level:log-level", "log_file:log-file",
		"metrics_addr:metrics-addr", "window_size:window-size", "max_retransmits:max-retransmits")

	root.AddCommand(sendCmd(), recvCmd(), serveCmd())
	return root
}

// bindAll binds viper keys to the matching persistent flag. An entry
// of "a:b" binds viper key a to flag b; a bare "a" binds key a to flag
// a of the same name.
func bindAll(m *config.Manager, root *cobra.Command, pairs ...string) {
	for _, p := range pairs {
		key, flag := p, p
		for i := 0; i < len(p); i++ {
			if p[i] == ':' {
				key, flag = p[:i], p[i+1:]
				break
			}
		}
		if f := root.PersistentFlags().Lookup(flag); f != nil {
			_ = m.V().BindPFlag(key, f)
		}
	}
}

// Execute runs the root command, recovering a panic into a Fatal log
// line rather than letting it crash with a raw stack trace.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			logger.Fatal("panic: %v", r)
		}
	}()
	if err := Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
