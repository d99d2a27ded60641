// Package config assembles the process-wide, read-mostly configuration
// spec.md §6 names: capture parameters, per-host thresholds, feature
// toggles, and the alert-delivery integrations. Precedence, low to high:
// Default() < on-disk JSON < PNA_ENVFILE env-file < CLI flags (applied by
// cmd).
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-envparse"

	"github.com/ftahirops/pna/flow"
)

// Config holds every spec.md §6 parameter plus the ambient alert
// integrations carried over from the teacher.
type Config struct {
	Iface        string `json:"iface"`         // pna_iface
	NetworksFile string `json:"networks_file"` // -n: CIDRs for localnet.Load
	Filter       string `json:"filter"`        // optional BPF filter expression (config/env only, no CLI flag)
	LogDir       string `json:"log_dir"`       // PNA_LOGDIR
	Verbose      bool   `json:"verbose"`       // -v
	Debug        bool   `json:"debug"`         // pna_debug

	Connections uint32 `json:"connections"` // pna_connections
	Sessions    uint32 `json:"sessions"`    // pna_sessions
	Ports       uint32 `json:"ports"`       // pna_ports
	Bytes       uint64 `json:"bytes"`       // pna_bytes
	Packets     uint64 `json:"packets"`     // pna_packets

	FlowEntries int  `json:"flow_entries"` // pna_flow_entries (-f)
	FlowMon     bool `json:"flowmon"`      // pna_flowmon
	RtMon       bool `json:"rtmon"`        // pna_rtmon
	PerfMon     bool `json:"perfmon"`      // pna_perfmon

	Shards int `json:"shards"` // number of dispatcher shards; 0 means one per CPU

	Metrics MetricsConfig `json:"metrics"`
	Store   StoreConfig   `json:"store"`
	Alerts  AlertConfig   `json:"alerts"`
}

// MetricsConfig controls the VictoriaMetrics-format /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// StoreConfig controls the durable sqlite alert store.
type StoreConfig struct {
	Path string `json:"path"`
}

// AlertConfig holds the multi-channel alert delivery integrations, kept
// from the teacher's own alert config shape.
type AlertConfig struct {
	Webhook          string `json:"webhook"`
	Command          string `json:"command"`
	Email            string `json:"email"`
	SlackWebhook     string `json:"slack_webhook"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

// Default returns a config with sensible defaults: thresholds disabled
// (0 means "no cap," see flow.Thresholds), a modest flow table, and every
// monitor feature on. Shards is 0, meaning "one per CPU" — cmd resolves
// that at startup.
func Default() Config {
	return Config{
		Iface:       "eth0",
		FlowEntries: 1 << 16,
		FlowMon:     true,
		RtMon:       true,
		PerfMon:     true,
		Shards:      0,
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9100",
		},
		Store: StoreConfig{
			Path: "pna-alerts.db",
		},
	}
}

// Path returns ~/.config/pna/config.json (or XDG_CONFIG_HOME). Returns
// empty string if the home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pna", "config.json")
}

// Load loads the on-disk JSON config (if any), then layers PNA_ENVFILE
// (if set) over it, and returns defaults on any read error.
func Load() Config {
	cfg := Default()
	p := Path()
	if p != "" {
		if data, err := os.ReadFile(p); err == nil {
			if err := json.Unmarshal(data, &cfg); err != nil {
				log.Printf("pna: warning: config parse error: %v", err)
			}
		}
	}

	if envPath := os.Getenv("PNA_ENVFILE"); envPath != "" {
		if err := applyEnvFile(&cfg, envPath); err != nil {
			log.Printf("pna: warning: env file error: %v", err)
		}
	}

	return cfg
}

// applyEnvFile parses a KEY=VALUE env file (hashicorp/go-envparse) and
// overlays any recognized pna_* key onto cfg.
func applyEnvFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	env, err := envparse.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for k, v := range env {
		switch k {
		case "PNA_IFACE":
			cfg.Iface = v
		case "PNA_NETWORKS_FILE":
			cfg.NetworksFile = v
		case "PNA_FILTER":
			cfg.Filter = v
		case "PNA_LOGDIR":
			cfg.LogDir = v
		case "PNA_DEBUG":
			cfg.Debug = parseBool(v, cfg.Debug)
		case "PNA_CONNECTIONS":
			cfg.Connections = uint32(parseUint(v, uint64(cfg.Connections)))
		case "PNA_SESSIONS":
			cfg.Sessions = uint32(parseUint(v, uint64(cfg.Sessions)))
		case "PNA_PORTS":
			cfg.Ports = uint32(parseUint(v, uint64(cfg.Ports)))
		case "PNA_BYTES":
			cfg.Bytes = parseUint(v, cfg.Bytes)
		case "PNA_PACKETS":
			cfg.Packets = parseUint(v, cfg.Packets)
		case "PNA_FLOW_ENTRIES":
			cfg.FlowEntries = int(parseUint(v, uint64(cfg.FlowEntries)))
		case "PNA_FLOWMON":
			cfg.FlowMon = parseBool(v, cfg.FlowMon)
		case "PNA_RTMON":
			cfg.RtMon = parseBool(v, cfg.RtMon)
		case "PNA_PERFMON":
			cfg.PerfMon = parseBool(v, cfg.PerfMon)
		}
	}
	return nil
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseUint(s string, fallback uint64) uint64 {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// Thresholds extracts the per-host caps from cfg as a flow.Thresholds.
func (c Config) Thresholds() flow.Thresholds {
	return flow.Thresholds{
		Connections: c.Connections,
		Sessions:    c.Sessions,
		Ports:       c.Ports,
		Bytes:       c.Bytes,
		Packets:     c.Packets,
	}
}

// Save writes cfg to disk as JSON.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
