package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/buemura/redirhunt/pkg/types"
	"github.com/rs/zerolog"
)

// State is the lifecycle phase of a Runner.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	StateReporting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateReporting:
		return "reporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer is notified while a scan runs. ProbeFinished is called from
// worker goroutines and must be safe for concurrent use.
type Observer interface {
	ScanStarted(total int)
	ProbeFinished(out Outcome)
}

// Runner orchestrates a full scan run, bounded by Config.MaxConcurrency.
type Runner struct {
	cfg      Config
	results  *Results
	observer Observer
	state    atomic.Int32
	log      zerolog.Logger
}

// NewRunner creates an idle runner for cfg. Validation happens in Run.
func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:     cfg,
		results: NewResults(),
		log:     cfg.logger(),
	}
}

// SetObserver registers o for progress notifications. Call before Run.
func (r *Runner) SetObserver(o Observer) {
	r.observer = o
}

// State returns the current lifecycle phase.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.log.Debug().Str("state", s.String()).Msg("scan state changed")
}

// Run validates the configuration, dispatches every probe and waits for all
// of them to resolve. Only a ConfigError is returned as an error; probe
// failures are folded into the summary. Cancelling ctx stops dispatching and
// the summary covers whatever was dispatched.
func (r *Runner) Run(ctx context.Context) (types.Summary, error) {
	r.setState(StateLoading)
	prober, err := NewProber(r.cfg)
	if err != nil {
		r.setState(StateFailed)
		return types.Summary{}, err
	}
	cfg := prober.cfg

	probes := Probes(cfg.Parameters, cfg.Destinations)
	r.setState(StateRunning)
	r.log.Info().
		Str("target", cfg.BaseURL).
		Int("probes", len(probes)).
		Int("concurrency", cfg.MaxConcurrency).
		Msg("scan started")
	if r.observer != nil {
		r.observer.ScanStarted(len(probes))
	}

	sem := make(chan struct{}, cfg.MaxConcurrency)
	var wg sync.WaitGroup

dispatch:
	for _, probe := range probes {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		r.results.Dispatched()
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			defer func() { <-sem }()

			out := prober.Run(ctx, p)
			r.results.Record(out)
			if out.Verdict == VerdictFailed {
				r.log.Debug().Str("url", out.TestURL).Int("attempts", out.Attempts).Err(out.Err).Msg("probe failed")
			}
			if r.observer != nil {
				r.observer.ProbeFinished(out)
			}

			// Pacing holds the slot so the bound also limits request rate.
			_ = sleep(ctx, cfg.RequestDelay)
		}(probe)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		r.log.Warn().Err(err).Msg("scan interrupted, reporting partial results")
	}

	r.setState(StateReporting)
	return r.results.Snapshot(), nil
}

// Finish marks the run as done once reporting has completed.
func (r *Runner) Finish() {
	r.setState(StateDone)
}
