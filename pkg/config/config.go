// Package config layers flags, a config file and the protocol's
// defaults into a single settings object, and can hot-reload the
// tuning constants (window size, timeouts, retransmit bound) from disk
// between transfers without restarting the process.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"rft/source/protocol"
)

// Settings is the full resolved configuration: the protocol tuning
// constants plus the ambient bits the CLI needs (addressing, logging,
// metrics).
type Settings struct {
	protocol.Config

	Host        string
	Port        int
	Root        string // root directory transfers are written under/read from
	LogLevel    string
	LogFile     string
	MetricsAddr string // empty disables the metrics server
}

func defaults() Settings {
	return Settings{
		Config:   protocol.DefaultConfig(),
		Host:     "127.0.0.1",
		Port:     9000,
		Root:     ".",
		LogLevel: "info",
	}
}

// Manager owns a viper instance and the last-loaded Settings, safe for
// concurrent reads from the scheduler loop while a watched file reload
// writes a new snapshot.
type Manager struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur Settings
}

// New returns a Manager seeded with the specification's defaults. Bind
// flags onto M.V() with viper.BindPFlag before calling Load so flags
// take precedence over the config file.
func New() *Manager {
	v := viper.New()
	v.SetEnvPrefix("RFT")
	v.AutomaticEnv()

	d := defaults()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("root", d.Root)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("window_size", d.WindowSize)
	v.SetDefault("poll_interval_ms", d.PollInterval.Milliseconds())
	v.SetDefault("retx_timeout_ms", d.RetxTimeout.Milliseconds())
	v.SetDefault("max_retransmits", d.MaxRetransmits)

	return &Manager{v: v, cur: d}
}

// V exposes the underlying viper instance so cobra command setup can
// bind flags onto it before Load runs.
func (m *Manager) V() *viper.Viper { return m.v }

// Load reads path (if non-empty) or searches ./rft.yaml, ~/.rft/rft.yaml
// and /etc/rft/rft.yaml, tolerating a missing file, then resolves the
// current Settings from flags+env+file+defaults in that precedence.
func (m *Manager) Load(path string) error {
	if path != "" {
		m.v.SetConfigFile(path)
	} else {
		m.v.SetConfigName("rft")
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("$HOME/.rft")
		m.v.AddConfigPath("/etc/rft")
	}

	if err := m.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("config: reading: %w", err)
		}
	}
	return m.resolve()
}

func (m *Manager) resolve() error {
	s := Settings{
		Host:        m.v.GetString("host"),
		Port:        m.v.GetInt("port"),
		Root:        m.v.GetString("root"),
		LogLevel:    m.v.GetString("log_level"),
		LogFile:     m.v.GetString("log_file"),
		MetricsAddr: m.v.GetString("metrics_addr"),
		Config: protocol.Config{
			WindowSize:     m.v.GetInt("window_size"),
			PollInterval:   time.Duration(m.v.GetInt64("poll_interval_ms")) * time.Millisecond,
			RetxTimeout:    time.Duration(m.v.GetInt64("retx_timeout_ms")) * time.Millisecond,
			MaxRetransmits: m.v.GetInt("max_retransmits"),
		},
	}
	if s.WindowSize <= 0 {
		return fmt.Errorf("config: window_size must be positive, got %d", s.WindowSize)
	}

	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the currently resolved Settings. Safe to
// call concurrently with a running watch.
func (m *Manager) Snapshot() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// WatchTuning reloads the window/timeout/retransmit constants whenever
// the config file changes on disk and passes the new Settings to
// onReload. A reload that fails validation is dropped without a call
// to onReload or any log line, and the last good snapshot stays in
// place. Addressing fields (host/port/
// root) are deliberately left at their startup value: a transfer
// mid-flight must not have its peer or sink moved out from under it,
// only its pacing may change between transfers.
func (m *Manager) WatchTuning(onReload func(Settings)) {
	m.v.OnConfigChange(func(fsnotify.Event) {
		prev := m.Snapshot()
		if err := m.resolve(); err != nil {
			// Keep serving the last good snapshot; resolve() already
			// left m.cur untouched on failure.
			return
		}
		next := m.Snapshot()
		next.Host, next.Port, next.Root = prev.Host, prev.Port, prev.Root
		m.mu.Lock()
		m.cur = next
		m.mu.Unlock()
		if onReload != nil {
			onReload(next)
		}
	})
	m.v.WatchConfig()
}
