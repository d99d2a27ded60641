package rtmon

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ftahirops/pna/perfmon"
)

// RtmonCleanInterval is the period of the shared clean timer.
const RtmonCleanInterval = 30 * time.Second

// Mode selects how a Pipeline hands packets to its monitors.
type Mode int

const (
	// ModeInline calls every monitor's Hook sequentially on the caller's
	// goroutine — no FIFOs, no worker pool.
	ModeInline Mode = iota
	// ModePipeline enqueues onto the first monitor's FIFO; each stage's
	// worker dequeues, calls Hook, and forwards to the next stage.
	ModePipeline
)

type stage struct {
	monitor Monitor
	fifo    chan PipeData
}

// Pipeline owns a registered sequence of monitors and, in ModePipeline,
// one worker goroutine per stage plus the shared clean timer.
type Pipeline struct {
	mode   Mode
	stages []*stage

	stop chan struct{}
	wg   sync.WaitGroup

	cleanTicker *time.Ticker
	cleanDone   chan struct{}

	logger zerolog.Logger
}

// New builds a Pipeline over monitors, in registration order. Init is
// called on every monitor immediately; if any fails, the ones already
// initialized are released in reverse order and the error is returned.
// Hook/FIFO-overflow diagnostics are discarded until SetLogger is called.
func New(mode Mode, monitors []Monitor) (*Pipeline, error) {
	p := &Pipeline{mode: mode, stop: make(chan struct{}), logger: zerolog.Nop()}
	for i, m := range monitors {
		if err := m.Init(); err != nil {
			for j := i - 1; j >= 0; j-- {
				monitors[j].Release()
			}
			return nil, err
		}
		p.stages = append(p.stages, &stage{monitor: m, fifo: make(chan PipeData, FIFOSize)})
	}

	if mode == ModePipeline {
		p.startWorkers()
	}
	p.startCleanTimer()
	return p, nil
}

// SetLogger attaches the logger used for hook errors and FIFO overflows.
func (p *Pipeline) SetLogger(l zerolog.Logger) { p.logger = l }

func (p *Pipeline) startWorkers() {
	for i, s := range p.stages {
		p.wg.Add(1)
		go p.run(i, s)
	}
}

func (p *Pipeline) run(i int, s *stage) {
	defer p.wg.Done()
	sampler := perfmon.NewIntervalSampler()
	for {
		select {
		case <-p.stop:
			return
		case pd := <-s.fifo:
			sampler.Add(pd.Dir, pd.Length)
			if report, ok := sampler.Tick(); ok {
				p.logger.Info().Str("monitor", s.monitor.Name()).Str("perf", report.String()).Msg("rtmon perf interval")
			}
			if err := s.monitor.Hook(pd); err != nil {
				p.logger.Error().Str("monitor", s.monitor.Name()).Err(err).Msg("rtmon hook error")
			}
			if i+1 < len(p.stages) {
				p.enqueue(i+1, pd)
			}
		}
	}
}

func (p *Pipeline) enqueue(stageIdx int, pd PipeData) {
	s := p.stages[stageIdx]
	select {
	case s.fifo <- pd:
	default:
		p.logger.Warn().Str("monitor", s.monitor.Name()).Msg("fifo overflow (" + s.monitor.Name() + ")")
	}
}

// Dispatch hands one packet to the pipeline. In ModeInline every
// monitor's Hook runs synchronously in registration order; in
// ModePipeline the packet is enqueued to the first stage only.
func (p *Pipeline) Dispatch(pd PipeData) {
	if len(p.stages) == 0 {
		return
	}
	if p.mode == ModeInline {
		for _, s := range p.stages {
			if err := s.monitor.Hook(pd); err != nil {
				p.logger.Error().Str("monitor", s.monitor.Name()).Err(err).Msg("rtmon hook error")
			}
		}
		return
	}

	select {
	case p.stages[0].fifo <- pd:
	default:
		p.logger.Warn().Msg("fifo overflow (start)")
	}
}

func (p *Pipeline) startCleanTimer() {
	p.cleanTicker = time.NewTicker(RtmonCleanInterval)
	p.cleanDone = make(chan struct{})
	go func() {
		for {
			select {
			case <-p.cleanDone:
				return
			case <-p.cleanTicker.C:
				for _, s := range p.stages {
					s.monitor.Clean()
				}
			}
		}
	}()
}

// Close stops all workers, stops the clean timer, and releases every
// monitor in reverse registration order.
func (p *Pipeline) Close() {
	close(p.stop)
	p.wg.Wait()

	p.cleanTicker.Stop()
	close(p.cleanDone)

	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].monitor.Release()
	}
}
