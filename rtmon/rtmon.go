// Package rtmon implements the real-time monitor pipeline of spec.md
// §4.5: a small registry of monitors, each fed by its own bounded FIFO and
// serviced by a dedicated worker, with a single repeating timer driving
// per-monitor cleanup. It is the Go rendering of spec.md §9's "tagged
// variant, not function pointer table" redesign note — monitors are
// concrete types behind a shared Monitor interface, iterated by slice
// instead of a sentinel-terminated C array.
package rtmon

import (
	"github.com/ftahirops/pna/model"
)

// FIFOSize is the capacity of each monitor's bounded SPSC queue
// (PNA_RTMON_FIFO_SZ in the original).
const FIFOSize = 32768

// PipeData is one packet's worth of state carried through the pipeline.
type PipeData struct {
	Key    model.FlowKey
	Dir    model.Direction
	Length int
}

// Monitor is one rtmon stage. Init/Release bracket the monitor's
// lifetime; Hook runs once per packet handed to this stage; Clean runs
// periodically off the shared clean timer, never concurrently with
// itself, but concurrently with Hook on a different goroutine — monitor
// state touched by both must use its own synchronization.
type Monitor interface {
	Name() string
	Init() error
	Hook(PipeData) error
	Clean()
	Release()
}
