// Package cmd implements the pna CLI entrypoint: flag parsing, wiring
// every shard's Dispatcher to the shared capture source, and dispatching
// into either the headless daemon loop or the live TUI.
package cmd

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ftahirops/pna/config"
	"github.com/ftahirops/pna/decode"
	"github.com/ftahirops/pna/dispatch"
	"github.com/ftahirops/pna/engine"
	"github.com/ftahirops/pna/localnet"
	"github.com/ftahirops/pna/logging"
	"github.com/ftahirops/pna/model"
	"github.com/ftahirops/pna/rtmon"
	"github.com/ftahirops/pna/ui"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// monitorMaxAge is how long rtmon's conmon/lipmon stages keep an idle
// host or (local,remote) pair before aging it out.
const monitorMaxAge = 5 * time.Minute

func printUsage() {
	fmt.Fprintf(os.Stderr, `pna v%s — passive network analyzer

Usage:
  pna [OPTIONS]

Options:
  -i IFACE          Interface to capture on (default: %s)
  -n FILE           Local networks file (one CIDR per line)
  -o DIR            Log/data directory (default: $PNA_LOGDIR or ./pna-data)
  -f N              Flow table entries per level (default: %d)
  -v                Verbose/debug logging
  -h                Show this help and exit
  -shards N         Number of flow-table shards (default: number of CPUs)
  -tui              Launch the live host table instead of the headless daemon
  -prom             Enable the Prometheus metrics endpoint
  -prom-addr ADDR   Prometheus listen address (default: %s)

Env:
  PNA_LOGDIR        Default log directory when -o is not given
  PNA_ENVFILE       Path to an env file overlaying the on-disk config

Exit codes: 0 success, non-zero on capture-open or local-network-table
build failure.
`, Version, config.Default().Iface, config.Default().FlowEntries, config.Default().Metrics.Addr)
}

// Run parses flags, builds the per-shard dispatch pipeline, and runs
// either the headless daemon or the live TUI until interrupted.
func Run() error {
	cfg := config.Load()

	var (
		showHelp    bool
		tuiMode     bool
		promEnabled = cfg.Metrics.Enabled
		promAddr    = cfg.Metrics.Addr
		shards      int
	)

	flag.StringVar(&cfg.Iface, "i", cfg.Iface, "interface to capture on")
	flag.StringVar(&cfg.NetworksFile, "n", cfg.NetworksFile, "local networks file")
	flag.StringVar(&cfg.LogDir, "o", defaultLogDir(cfg), "log/data directory")
	flag.IntVar(&cfg.FlowEntries, "f", cfg.FlowEntries, "flow table entries per level")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "verbose/debug logging")
	flag.BoolVar(&showHelp, "h", false, "show help")
	flag.IntVar(&shards, "shards", defaultShards(cfg), "number of flow-table shards")
	flag.BoolVar(&tuiMode, "tui", false, "launch the live host table")
	flag.BoolVar(&promEnabled, "prom", promEnabled, "enable the Prometheus metrics endpoint")
	flag.StringVar(&promAddr, "prom-addr", promAddr, "Prometheus listen address")

	flag.Usage = printUsage
	flag.Parse()

	if showHelp {
		printUsage()
		return nil
	}
	cfg.Shards = shards

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
			return fmt.Errorf("cmd: create log dir: %w", err)
		}
	}

	localTable, err := localnet.Load(cfg.NetworksFile)
	if err != nil {
		return fmt.Errorf("cmd: load local networks: %w", err)
	}

	logger := logging.New(true, cfg.Debug || cfg.Verbose)

	notifier := engine.NewNotifier(cfg.Alerts)
	notifier.SetLogger(logger)

	if cfg.Store.Path != "" {
		store, err := engine.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("cmd: open alert store: %w", err)
		}
		defer store.Close()
		notifier.SetStore(store)
	}
	if cfg.LogDir != "" {
		recorder, err := engine.OpenRecorder(filepath.Join(cfg.LogDir, "alerts.jsonl"))
		if err != nil {
			return fmt.Errorf("cmd: open alert recorder: %w", err)
		}
		defer recorder.Close()
		notifier.SetRecorder(recorder)
	}

	var metrics *engine.MetricsStore
	if promEnabled {
		metrics = engine.NewMetricsStore()
		srv := &http.Server{
			Addr:              promAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "pna: metrics endpoint failed: %v\n", err)
			}
		}()
		fmt.Fprintf(os.Stderr, "pna: metrics listening on %s\n", promAddr)
	}

	sizes := model.TableSizes{
		LipEntries:  cfg.FlowEntries,
		RipEntries:  cfg.FlowEntries,
		PortEntries: cfg.FlowEntries,
	}
	thresholds := cfg.Thresholds()

	dispatchers := make([]*dispatch.Dispatcher, cfg.Shards)
	exporters := make([]engine.ShardExporter, cfg.Shards)
	closers := make([]engine.Closer, 0, cfg.Shards)
	lipMonitors := make([]*rtmon.LipMonitor, cfg.Shards)
	connMonitors := make([]*rtmon.ConnMonitor, cfg.Shards)

	for i := 0; i < cfg.Shards; i++ {
		var pipe *rtmon.Pipeline
		if cfg.RtMon {
			lipMon := rtmon.NewLipMonitor(cfg.FlowEntries, monitorMaxAge)
			connMon := rtmon.NewConnMonitor(cfg.FlowEntries, monitorMaxAge)
			p, err := rtmon.New(rtmon.ModePipeline, []rtmon.Monitor{lipMon, connMon})
			if err != nil {
				return fmt.Errorf("cmd: build rtmon pipeline for shard %d: %w", i, err)
			}
			p.SetLogger(logger)
			pipe = p
			lipMonitors[i] = lipMon
			connMonitors[i] = connMon
			closers = append(closers, p)
		}

		d := dispatch.New(dispatch.Options{
			Sizes:      sizes,
			IsLocal:    localTable.IsLocal,
			Thresholds: thresholds,
			Notifier:   notifier,
			Pipeline:   pipe,
			FlowMon:    cfg.FlowMon,
			RtMon:      cfg.RtMon,
			PerfMon:    cfg.PerfMon,
			Debug:      cfg.Debug || cfg.Verbose,
			Logger:     &logger,
		})
		dispatchers[i] = d
		exporters[i] = d
	}

	manager := dispatch.NewManager(dispatchers)

	source, err := decode.OpenLive(cfg.Iface, 65536, true)
	if err != nil {
		return fmt.Errorf("cmd: open capture on %s: %w", cfg.Iface, err)
	}
	if err := source.SetFilter(cfg.Filter); err != nil {
		return fmt.Errorf("cmd: set capture filter: %w", err)
	}

	if metrics != nil && cfg.RtMon {
		go exportRtmonMetrics(metrics, lipMonitors, connMonitors, 10*time.Second)
	}

	daemon := engine.NewDaemon(engine.DaemonConfig{
		Source:         source,
		Router:         manager,
		Shards:         exporters,
		Pipelines:      closers,
		Metrics:        metrics,
		ExportInterval: 10 * time.Second,
		DataDir:        cfg.LogDir,
		Logger:         &logger,
	})

	if !tuiMode {
		return daemon.Run()
	}

	provider := func() []ui.HostRow { return topHosts(lipMonitors, connMonitors) }
	m := ui.NewModel(provider, 2*time.Second)

	daemonErr := make(chan error, 1)
	go func() { daemonErr <- daemon.Run() }()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return <-daemonErr
}

// exportRtmonMetrics periodically records each shard's tracked-host and
// tracked-connection counts, independent of Daemon's export tick since
// rtmon monitor state lives in cmd, not in a ShardExporter.
func exportRtmonMetrics(metrics *engine.MetricsStore, lipMonitors []*rtmon.LipMonitor, connMonitors []*rtmon.ConnMonitor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for i, lm := range lipMonitors {
			if lm != nil {
				metrics.UpdateRtmon(i, "lipmon", len(lm.Snapshot()))
			}
		}
		for i, cm := range connMonitors {
			if cm != nil {
				metrics.UpdateRtmon(i, "conmon", cm.Len())
			}
		}
	}
}

func defaultLogDir(cfg config.Config) string {
	if cfg.LogDir != "" {
		return cfg.LogDir
	}
	if d := os.Getenv("PNA_LOGDIR"); d != "" {
		return d
	}
	return "./pna-data"
}

func defaultShards(cfg config.Config) int {
	if cfg.Shards > 0 {
		return cfg.Shards
	}
	return runtime.NumCPU()
}

// topHosts aggregates every shard's lipmon/conmon state into a single
// sorted-by-volume host table for the live view.
func topHosts(lipMonitors []*rtmon.LipMonitor, connMonitors []*rtmon.ConnMonitor) []ui.HostRow {
	agg := make(map[uint32]ui.HostRow)

	for i, lm := range lipMonitors {
		if lm == nil {
			continue
		}
		for ip, stats := range lm.Snapshot() {
			row := agg[ip]
			row.IP = model.IPString(ip)
			row.BytesOut += stats.Bytes[model.DirOutbound]
			row.BytesIn += stats.Bytes[model.DirInbound]
			row.PacketsOut += stats.Packets[model.DirOutbound]
			row.PacketsIn += stats.Packets[model.DirInbound]
			if i < len(connMonitors) && connMonitors[i] != nil {
				row.Connections += connMonitors[i].Count(ip)
			}
			agg[ip] = row
		}
	}

	rows := make([]ui.HostRow, 0, len(agg))
	for _, row := range agg {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BytesOut+rows[i].BytesIn > rows[j].BytesOut+rows[j].BytesIn
	})
	return rows
}
