package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftahirops/pna/flow"
	"github.com/ftahirops/pna/perfmon"
)

// PacketSource is the capture-loop's packet feed — decode.PcapSource
// satisfies it without engine needing to import the decode package.
type PacketSource interface {
	ReadPacketData() (data []byte, length int, err error)
	Close()
}

// Router decodes and routes one captured frame — dispatch.Manager
// satisfies it without engine needing to import the dispatch package.
type Router interface {
	Dispatch(data []byte, length int)
}

// ShardExporter exposes one shard's flow table and latest perf report
// for periodic metrics export — dispatch.Dispatcher satisfies it.
type ShardExporter interface {
	Table() *flow.Table
	Perf() (perfmon.Report, bool)
}

// Closer releases a per-shard rtmon pipeline on shutdown —
// rtmon.Pipeline satisfies it.
type Closer interface {
	Close()
}

// DaemonConfig wires a Daemon's collaborators.
type DaemonConfig struct {
	Source         PacketSource
	Router         Router
	Shards         []ShardExporter
	Pipelines      []Closer
	Metrics        *MetricsStore
	ExportInterval time.Duration
	DataDir        string
	// Logger is optional; nil means diagnostics are discarded.
	Logger *zerolog.Logger
}

// Daemon runs the capture loop, periodic metrics export, and rolling
// summary log, until SIGINT/SIGTERM.
type Daemon struct {
	cfg    DaemonConfig
	logger zerolog.Logger
}

// NewDaemon builds a Daemon from cfg. The logger defaults to a no-op sink
// when cfg.Logger is nil.
func NewDaemon(cfg DaemonConfig) *Daemon {
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = 10 * time.Second
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Daemon{cfg: cfg, logger: logger}
}

type shardSummary struct {
	Shard        int    `json:"shard"`
	NLips        uint64 `json:"nlips"`
	NRips        uint64 `json:"nrips"`
	NPorts       uint64 `json:"nports"`
	NLipsMissed  uint64 `json:"nlips_missed"`
	NRipsMissed  uint64 `json:"nrips_missed"`
	NPortsMissed uint64 `json:"nports_missed"`
}

type tickSummary struct {
	Timestamp time.Time      `json:"ts"`
	Shards    []shardSummary `json:"shards"`
}

// Run reads packets until a termination signal arrives, dispatching each
// through Router and periodically exporting shard counters. Shutdown
// follows spec.md §5's sequence: stop reading first, then release the
// per-shard rtmon pipelines (which themselves stop their workers, cancel
// their clean timers, and release their monitors in that order), then
// return — the shard tables are simply dropped with the process.
func (d *Daemon) Run() error {
	if d.cfg.DataDir != "" {
		if err := os.MkdirAll(d.cfg.DataDir, 0700); err != nil {
			return fmt.Errorf("engine: create data dir: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	captureErr := make(chan error, 1)
	stop := make(chan struct{})
	go d.captureLoop(stop, captureErr)

	exportTicker := time.NewTicker(d.cfg.ExportInterval)
	defer exportTicker.Stop()

	d.logger.Info().Int("pid", os.Getpid()).Msg("daemon started")

	for {
		select {
		case <-sigCh:
			d.logger.Info().Msg("daemon shutting down")
			close(stop)
			d.cfg.Source.Close()
			for _, p := range d.cfg.Pipelines {
				p.Close()
			}
			return nil
		case err := <-captureErr:
			close(stop)
			for _, p := range d.cfg.Pipelines {
				p.Close()
			}
			return fmt.Errorf("engine: capture loop: %w", err)
		case <-exportTicker.C:
			d.exportOnce()
		}
	}
}

func (d *Daemon) captureLoop(stop <-chan struct{}, errCh chan<- error) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		data, length, err := d.cfg.Source.ReadPacketData()
		if err != nil {
			errCh <- err
			return
		}
		d.cfg.Router.Dispatch(data, length)
	}
}

func (d *Daemon) exportOnce() {
	summary := tickSummary{Timestamp: time.Now()}
	for i, shard := range d.cfg.Shards {
		info := shard.Table().Info()
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.UpdateTable(i, info)
			if report, ok := shard.Perf(); ok {
				d.cfg.Metrics.UpdatePerf(i, report)
			}
		}
		summary.Shards = append(summary.Shards, shardSummary{
			Shard:        i,
			NLips:        info.NLips,
			NRips:        info.NRips,
			NPorts:       info.NPorts,
			NLipsMissed:  info.NLipsMissed,
			NRipsMissed:  info.NRipsMissed,
			NPortsMissed: info.NPortsMissed,
		})
	}
	if d.cfg.DataDir != "" {
		writeSummaryLine(filepath.Join(d.cfg.DataDir, "current.jsonl"), summary)
	}

	var nlips, nrips, nports uint64
	for _, s := range summary.Shards {
		nlips += s.NLips
		nrips += s.NRips
		nports += s.NPorts
	}
	d.logger.Info().
		Uint64("nlips", nlips).
		Uint64("nrips", nrips).
		Uint64("nports", nports).
		Msg("export tick")
}

// writeSummaryLine appends a compact JSON line to the summary file.
// Rotates at 10MB.
func writeSummaryLine(path string, s tickSummary) {
	if info, err := os.Stat(path); err == nil && info.Size() > 10*1024*1024 {
		_ = os.Rename(path, path+".old")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_ = json.NewEncoder(f).Encode(s)
}
