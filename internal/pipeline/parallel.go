package pipeline

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inodb/nmdscan/internal/events"
)

// WorkItem holds one event ready for analysis.
type WorkItem struct {
	Seq   int
	Event events.Event
}

// WorkResult holds the outcomes for a single event.
type WorkResult struct {
	Seq      int
	Event    events.Event
	Outcomes []Outcome
	Err      error // gene lookup failure
}

// ParallelAnalyze analyzes work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// If workers is 0, runtime.NumCPU() is used. Workers stop early when ctx is
// cancelled; the returned channel is closed once all of them have exited.
func (d *Driver) ParallelAnalyze(ctx context.Context, st events.SpliceType, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range items {
				outcomes, err := d.AnalyzeEvent(st, item.Event)
				select {
				case results <- WorkResult{Seq: item.Seq, Event: item.Event, Outcomes: outcomes, Err: err}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// Run analyzes all events of one splice type with the given number of
// workers and returns the outcomes in event order, then transcript order.
func (d *Driver) Run(ctx context.Context, st events.SpliceType, evs []events.Event, workers int) (*Report, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan WorkItem)
	go func() {
		defer close(items)
		for i, ev := range evs {
			select {
			case items <- WorkItem{Seq: i, Event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}()

	report := &Report{SpliceType: st, Events: len(evs)}
	missing := make(map[string]bool)

	err := OrderedCollect(d.ParallelAnalyze(ctx, st, items, workers), func(r WorkResult) error {
		if r.Err != nil {
			if !missing[r.Event.GeneID] {
				missing[r.Event.GeneID] = true
				report.MissingGenes = append(report.MissingGenes, r.Event.GeneID)
			}
			return nil
		}
		for _, o := range r.Outcomes {
			report.add(o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.metrics.RecordRunDuration(string(st), time.Since(start))
	d.logger.Info("analysis finished",
		zap.String("splice_type", string(st)),
		zap.Int("events", report.Events),
		zap.Int("results", len(report.Results)),
		zap.Int("skipped", len(report.Skips)),
		zap.Int("failed", report.Failed),
		zap.Int("missing_genes", len(report.MissingGenes)),
		zap.Duration("elapsed", time.Since(start)))

	return report, nil
}
