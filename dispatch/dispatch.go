// Package dispatch wires decode -> localize -> perf sample -> flow table
// -> rtmon into the per-shard packet hook spec.md §4.6 describes (the
// Go rendering of pna_main.c's pna_hook, with "per-CPU" generalized to
// "per-shard").
package dispatch

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/ftahirops/pna/engine"
	"github.com/ftahirops/pna/flow"
	"github.com/ftahirops/pna/model"
	"github.com/ftahirops/pna/perfmon"
	"github.com/ftahirops/pna/rtmon"
)

// Dispatcher owns one shard's exclusive flow table, perf sampler, and
// rtmon pipeline. It is not safe for concurrent use — exactly one
// goroutine (the shard's capture/flowmon context) may call HandleKey.
// Table() and Perf() are the exception: they're read from the metrics
// export goroutine and are safe to call concurrently with HandleKey.
type Dispatcher struct {
	table   *flow.Table
	sampler *perfmon.IntervalSampler
	pipe    *rtmon.Pipeline

	isLocal    flow.IsLocal
	thresholds flow.Thresholds
	notifier   *engine.Notifier

	flowMon bool
	rtMon   bool
	perfMon bool
	debug   bool
	logger  zerolog.Logger

	perfMu     sync.Mutex
	lastReport perfmon.Report
	haveReport bool
}

// Options configures a Dispatcher.
type Options struct {
	Sizes      model.TableSizes
	IsLocal    flow.IsLocal
	Thresholds flow.Thresholds
	Notifier   *engine.Notifier
	Pipeline   *rtmon.Pipeline // nil disables rtmon regardless of RtMon
	FlowMon    bool
	RtMon      bool
	PerfMon    bool
	Debug      bool
	// Logger is optional; nil means diagnostics are discarded.
	Logger *zerolog.Logger
}

// New builds a Dispatcher for one shard. The logger defaults to a no-op
// sink; pass Options.Logger to observe perf and overflow diagnostics.
func New(opts Options) *Dispatcher {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Dispatcher{
		table:      flow.NewTable(opts.Sizes),
		sampler:    perfmon.NewIntervalSampler(),
		pipe:       opts.Pipeline,
		isLocal:    opts.IsLocal,
		thresholds: opts.Thresholds,
		notifier:   opts.Notifier,
		flowMon:    opts.FlowMon,
		rtMon:      opts.RtMon && opts.Pipeline != nil,
		perfMon:    opts.PerfMon,
		debug:      opts.Debug,
		logger:     logger,
	}
}

// SetLogger attaches the logger used for perf and overflow diagnostics.
func (d *Dispatcher) SetLogger(l zerolog.Logger) { d.logger = l }

// Table exposes the shard's flow table (for metrics export and the
// external flush/reset collaborator).
func (d *Dispatcher) Table() *flow.Table { return d.table }

// Perf returns the most recently completed perf interval report, if one
// has fired yet.
func (d *Dispatcher) Perf() (perfmon.Report, bool) {
	d.perfMu.Lock()
	defer d.perfMu.Unlock()
	return d.lastReport, d.haveReport
}

// HandleKey runs one already-decoded, not-yet-localized packet through
// localize, perf sampling, the flow table, the threshold check, and
// (if not alerted) rtmon. It implements spec.md §4.6 steps 4-8; decode
// (step 3) and shard routing happen in Manager before this is called.
func (d *Dispatcher) HandleKey(key model.FlowKey, length int) {
	dir, ok := flow.Localize(&key, d.isLocal)
	if !ok {
		return // neither endpoint is local: drop
	}

	if d.perfMon {
		d.sampler.Add(dir, length)
		if report, ok := d.sampler.Tick(); ok {
			d.logger.Info().Str("perf", report.String()).Msg("perf interval")
			d.perfMu.Lock()
			d.lastReport, d.haveReport = report, true
			d.perfMu.Unlock()
		}
	}

	if !d.flowMon {
		d.dispatchRtmon(key, dir, length)
		return
	}

	lip, err := d.table.InsertOrFindLIP(key.LocalIP)
	if err != nil {
		d.logOverflow("lip", err)
		return
	}
	if v := flow.CheckConnections(d.thresholds, lip); v.Breached {
		if d.notifier != nil {
			d.notifier.SessionAction(v.Kind, key.LocalIP, v.Reason)
		}
		return
	}

	rip, err := d.table.InsertOrFindRIP(lip, key.RemoteIP, dir)
	if err != nil {
		d.logOverflow("rip", err)
		return
	}
	if v := flow.CheckSession(d.thresholds, lip, rip, key.L4Protocol); v.Breached {
		if d.notifier != nil {
			d.notifier.SessionAction(v.Kind, key.LocalIP, v.Reason)
		}
		return
	}

	_, err = d.table.InsertOrFindPort(lip, rip, key.L4Protocol, key.LocalPort, key.RemotePort, length, dir)
	if err != nil {
		d.logOverflow("port", err)
		return
	}

	d.dispatchRtmon(key, dir, length)
}

func (d *Dispatcher) dispatchRtmon(key model.FlowKey, dir model.Direction, length int) {
	if !d.rtMon {
		return
	}
	d.pipe.Dispatch(rtmon.PipeData{Key: key, Dir: dir, Length: length})
}

func (d *Dispatcher) logOverflow(level string, err error) {
	if d.debug {
		d.logger.Debug().Str("level", level).Err(err).Msg("table overflow")
	}
}
