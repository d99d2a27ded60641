// pnamon is the headless analogue of the original pna.c's verbose-alarm
// mode: it runs the capture/dispatch pipeline with no TUI and logs one
// summary line per export interval to stderr (the daemon's "export tick"
// log line); only the startup banner goes to stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ftahirops/pna/config"
	"github.com/ftahirops/pna/decode"
	"github.com/ftahirops/pna/dispatch"
	"github.com/ftahirops/pna/engine"
	"github.com/ftahirops/pna/localnet"
	"github.com/ftahirops/pna/logging"
	"github.com/ftahirops/pna/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pnamon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	iface := flag.String("i", cfg.Iface, "interface to capture on")
	networksFile := flag.String("n", cfg.NetworksFile, "local networks file")
	interval := flag.Int("interval", 10, "summary interval in seconds")
	shards := flag.Int("shards", runtime.NumCPU(), "number of flow-table shards")
	flag.Parse()

	cfg.Iface = *iface
	cfg.NetworksFile = *networksFile
	cfg.Shards = *shards

	localTable, err := localnet.Load(cfg.NetworksFile)
	if err != nil {
		return fmt.Errorf("load local networks: %w", err)
	}

	logger := logging.New(false, cfg.Debug)

	notifier := engine.NewNotifier(cfg.Alerts)
	notifier.SetLogger(logger)
	if cfg.Store.Path != "" {
		store, err := engine.Open(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open alert store: %w", err)
		}
		defer store.Close()
		notifier.SetStore(store)
	}

	sizes := model.TableSizes{LipEntries: cfg.FlowEntries, RipEntries: cfg.FlowEntries, PortEntries: cfg.FlowEntries}
	thresholds := cfg.Thresholds()

	dispatchers := make([]*dispatch.Dispatcher, cfg.Shards)
	exporters := make([]engine.ShardExporter, cfg.Shards)
	for i := 0; i < cfg.Shards; i++ {
		d := dispatch.New(dispatch.Options{
			Sizes:      sizes,
			IsLocal:    localTable.IsLocal,
			Thresholds: thresholds,
			Notifier:   notifier,
			FlowMon:    cfg.FlowMon,
			PerfMon:    cfg.PerfMon,
			Debug:      cfg.Debug,
			Logger:     &logger,
		})
		dispatchers[i] = d
		exporters[i] = d
	}

	manager := dispatch.NewManager(dispatchers)

	source, err := decode.OpenLive(cfg.Iface, 65536, true)
	if err != nil {
		return fmt.Errorf("open capture on %s: %w", cfg.Iface, err)
	}

	fmt.Printf("pnamon — headless capture on %s (%d shards)\n", cfg.Iface, cfg.Shards)

	daemon := engine.NewDaemon(engine.DaemonConfig{
		Source:         source,
		Router:         manager,
		Shards:         exporters,
		ExportInterval: time.Duration(*interval) * time.Second,
		Logger:         &logger,
	})
	return daemon.Run()
}
