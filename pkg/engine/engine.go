// Package engine drives triadic closure detection: it pulls date batches
// from a source, replays them into a growing network with a collector
// attached, and reports what was found.
//
// Processing is single-threaded. The sink flush at the end of each date is
// the only I/O during a run; the next date starts only after it returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/triadic/pkg/collector"
	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/network"
	"github.com/daviddao/triadic/pkg/stream"
)

// BatchSource starts passes over the date batches. *stream.Source
// satisfies it.
type BatchSource interface {
	Batches(ctx context.Context) *stream.Cursor
}

// RunLedger records run lifecycle. *store.Store satisfies it.
type RunLedger interface {
	StartRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
}

// Options configures an Engine.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Ledger, if set, receives one entry per Run.
	Ledger RunLedger

	// ProgressEvery logs an Info progress line every N batches. Zero
	// disables progress lines.
	ProgressEvery int
}

// RunOptions controls a single Run.
type RunOptions struct {
	// StopAfter stops the run after exactly this many batches, so
	// StopAfter 1 processes the first date only. Zero means run to
	// exhaustion.
	StopAfter int
}

// Summary reports the outcome of a run. Attributes counts the actors of
// the final network per attribute.
type Summary struct {
	RunID      string          `json:"run_id,omitempty"`
	Batches    int             `json:"batches"`
	Closed     int64           `json:"closed"`
	Inserted   int64           `json:"inserted"`
	Nodes      int             `json:"nodes"`
	Edges      int             `json:"edges"`
	Attributes map[int64]int   `json:"attributes"`
	MaxDegree  int             `json:"max_degree"`
	Stopped    bool            `json:"stopped"`
	Elapsed    time.Duration   `json:"elapsed"`
	Collector  collector.Stats `json:"collector"`
}

// Engine owns one network and one collector. It is not safe for concurrent
// use.
type Engine struct {
	src    BatchSource
	sink   collector.Sink
	opts   Options
	logger *slog.Logger

	net *network.Network
	col *collector.Collector
	cur *stream.Cursor

	batches int
}

// New creates an engine reading from src and writing to sink.
func New(src BatchSource, sink collector.Sink, opts Options) (*Engine, error) {
	if src == nil {
		return nil, errors.New("engine: source is required")
	}
	if sink == nil {
		return nil, errors.New("engine: sink is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{src: src, sink: sink, opts: opts, logger: opts.Logger}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset discards all network and wedge state. The next Step starts a new
// pass from the first batch.
func (e *Engine) Reset() error {
	net := network.New()
	col, err := collector.New(net, collector.Config{Sink: e.sink, Logger: e.logger})
	if err != nil {
		return err
	}
	e.net, e.col, e.cur, e.batches = net, col, nil, 0
	return nil
}

// Step processes the next date batch and returns the motifs flushed for it.
// ok is false once the source is exhausted. On error the motifs of the
// batch in progress are discarded and the engine should be Reset before
// further use.
func (e *Engine) Step(ctx context.Context) (flushed []model.Motif, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if e.cur == nil {
		e.cur = e.src.Batches(ctx)
	}
	if !e.cur.Next() {
		return nil, false, e.cur.Err()
	}
	b := e.cur.Batch()
	if err := e.net.AddDate(ctx, b); err != nil {
		dropped := e.col.Discard()
		return nil, false, fmt.Errorf("date %s: %w (dropped %d motifs)",
			b.Timestamp.Format(time.DateOnly), err, dropped)
	}
	e.batches++
	flushed = append([]model.Motif(nil), e.col.Flushed()...)
	e.logger.Debug("batch processed",
		"date", b.Timestamp.Format(time.DateOnly),
		"projects", len(b.Projects),
		"actors", len(b.Actors),
		"motifs", len(flushed))
	if n := e.opts.ProgressEvery; n > 0 && e.batches%n == 0 {
		st := e.col.Stats()
		e.logger.Info("progress",
			"batches", e.batches,
			"date", b.Timestamp.Format(time.DateOnly),
			"nodes", e.net.NumNodes(),
			"edges", e.net.NumEdges(),
			"closed", st.Closed,
			"pending_pairs", st.PendingPairs)
	}
	return flushed, true, nil
}

// Run resets the engine and processes batches until the source is
// exhausted, opts.StopAfter batches were processed, ctx is done or an error
// occurs. The returned Summary is filled in all cases.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	if opts.StopAfter < 0 {
		return Summary{}, fmt.Errorf("engine: negative stop-after %d", opts.StopAfter)
	}
	if err := e.Reset(); err != nil {
		return Summary{}, err
	}
	start := time.Now()

	var run *model.Run
	if e.opts.Ledger != nil {
		var err error
		if run, err = e.opts.Ledger.StartRun(ctx); err != nil {
			return Summary{}, fmt.Errorf("start run: %w", err)
		}
	}
	log := e.logger
	if run != nil {
		log = log.With("run_id", run.ID)
	}
	log.Info("run started", "stop_after", opts.StopAfter)

	var sum Summary
	var runErr error
	for {
		if opts.StopAfter > 0 && e.batches >= opts.StopAfter {
			sum.Stopped = true
			break
		}
		_, ok, err := e.Step(ctx)
		if err != nil {
			runErr = err
			break
		}
		if !ok {
			break
		}
	}

	st := e.col.Stats()
	sum.Batches = e.batches
	sum.Closed = st.Closed
	sum.Inserted = st.Inserted
	sum.Nodes = e.net.NumNodes()
	sum.Edges = e.net.NumEdges()
	sum.Attributes, sum.MaxDegree = profile(e.net)
	sum.Elapsed = time.Since(start)
	sum.Collector = st

	if run != nil {
		sum.RunID = run.ID
		run.Batches = int64(sum.Batches)
		run.Motifs = sum.Inserted
		switch {
		case runErr != nil:
			run.Status, run.Error = model.RunFailed, runErr.Error()
		case sum.Stopped:
			run.Status = model.RunStopped
		default:
			run.Status = model.RunCompleted
		}
		if err := e.opts.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("failed to record run", "error", err)
		}
	}

	if runErr != nil {
		log.Error("run failed", "batches", sum.Batches, "error", runErr)
		return sum, runErr
	}
	log.Info("run finished",
		"batches", sum.Batches,
		"closed", sum.Closed,
		"inserted", sum.Inserted,
		"stopped", sum.Stopped,
		"elapsed", sum.Elapsed)
	return sum, nil
}

// profile counts actors per attribute and finds the highest degree.
func profile(net *network.Network) (map[int64]int, int) {
	attrs := make(map[int64]int)
	maxDegree := 0
	for _, actor := range net.Nodes() {
		attr, _ := net.Attribute(actor)
		attrs[attr]++
		maxDegree = max(maxDegree, net.Degree(actor))
	}
	return attrs, maxDegree
}

