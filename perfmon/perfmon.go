// Package perfmon implements the reusable interval sampler spec.md §9
// calls out: the original duplicated its fixed-window fps/Mbps logic
// between pna_main.c's pna_perflog and pna_rtmon.c's rtmon_pipe; here it
// is factored into one IntervalSampler used by both the dispatcher and
// every rtmon stage.
package perfmon

import (
	"fmt"
	"time"

	"github.com/ftahirops/pna/model"
)

// PerfInterval is the sampling window (spec.md §4.4).
const PerfInterval = 10 * time.Second

// EthOverhead is added to every packet's reported byte count to account
// for the Ethernet framing the capture path does not hand the sampler
// (8-byte preamble plus 12-byte inter-frame gap), matching pna_perflog's
// ETH_OVERHEAD.
const EthOverhead = 20

// noiseFloor suppresses reporting when total throughput is negligible.
const noiseFloor = 1000

// Report is one window's computed rates, per direction.
type Report struct {
	FPS      [model.Directions]float64
	Mbps     [model.Directions]float64
	AvgFrame [model.Directions]float64
}

// String renders a Report the way pna_perflog logs it.
func (r Report) String() string {
	return fmt.Sprintf(
		"perf: out fps=%.1f mbps=%.2f avg=%.0fB  in fps=%.1f mbps=%.2f avg=%.0fB",
		r.FPS[model.DirOutbound], r.Mbps[model.DirOutbound], r.AvgFrame[model.DirOutbound],
		r.FPS[model.DirInbound], r.Mbps[model.DirInbound], r.AvgFrame[model.DirInbound],
	)
}

// IntervalSampler accumulates per-direction packet/byte counts and, once
// PerfInterval has elapsed, folds them into a Report and resets. It is
// owned exclusively by one shard or rtmon stage — no internal locking.
type IntervalSampler struct {
	packets  [model.Directions]uint64
	bytes    [model.Directions]uint64
	deadline time.Time
	now      func() time.Time
}

// NewIntervalSampler creates a sampler whose first window ends
// PerfInterval from now.
func NewIntervalSampler() *IntervalSampler {
	return newIntervalSampler(time.Now)
}

func newIntervalSampler(now func() time.Time) *IntervalSampler {
	return &IntervalSampler{deadline: now().Add(PerfInterval), now: now}
}

// Add records one packet of the given wire length in direction dir.
func (s *IntervalSampler) Add(dir model.Direction, length int) {
	s.packets[dir]++
	s.bytes[dir] += uint64(length) + EthOverhead
}

// Tick checks whether the current window has elapsed. If so it computes a
// Report, resets counters, sets the next deadline PerfInterval after now, and
// returns (report, true). The report is suppressed (ok=false) when total
// fps across both directions is at or below the noise floor, even though
// the window still resets — matching pna_perflog's "only log if
// fps_in+fps_out>1000" behavior.
func (s *IntervalSampler) Tick() (report Report, ok bool) {
	now := s.now()
	if now.Before(s.deadline) {
		return Report{}, false
	}

	elapsed := now.Sub(s.deadline.Add(-PerfInterval)).Seconds()
	if elapsed <= 0 {
		elapsed = PerfInterval.Seconds()
	}

	var r Report
	var totalFPS float64
	for d := model.Direction(0); d < model.Directions; d++ {
		fps := float64(s.packets[d]) / elapsed
		mbps := float64(s.bytes[d]*8) / elapsed / 1e6
		avg := 0.0
		if s.packets[d] > 0 {
			avg = float64(s.bytes[d]) / float64(s.packets[d])
		}
		r.FPS[d] = fps
		r.Mbps[d] = mbps
		r.AvgFrame[d] = avg
		totalFPS += fps
	}

	s.packets = [model.Directions]uint64{}
	s.bytes = [model.Directions]uint64{}
	s.deadline = now.Add(PerfInterval)

	return r, totalFPS > noiseFloor
}
