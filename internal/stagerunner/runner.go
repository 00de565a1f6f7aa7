package stagerunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"panelcast/internal/logging"
	"panelcast/internal/manifest"
	"panelcast/internal/services"
	"panelcast/internal/stage"
)

// Runner runs stages with a shared concurrency limit and per-item timeout.
type Runner struct {
	Concurrency int
	ItemTimeout time.Duration
	Logger      *slog.Logger
	// OnItem, when set, is called after each item finishes.
	OnItem func(name stage.Name, done, total int)
}

type outcome struct {
	item stage.Item
	err  error
}

// Run executes stg against doc and returns the updated copy.
func (r *Runner) Run(ctx context.Context, stg stage.Stage, doc *manifest.Comic) (*manifest.Comic, error) {
	if stg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "stagerunner", "run", "stage unavailable", nil)
	}
	if doc == nil {
		return nil, services.Wrap(services.ErrInvariant, string(stg.Name()), "run", "nil manifest", nil)
	}
	name := stg.Name()
	logger := logging.WithContext(services.WithStage(ctx, string(name)), r.Logger)

	work := doc.Clone()
	if preparer, ok := stg.(stage.Preparer); ok {
		if err := preparer.Prepare(ctx, work); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("stage %s cancelled: %w", name, ctxErr)
			}
			return nil, wrapStageError(name, "prepare", err)
		}
	}

	snapshot := work.Clone()
	items := Enumerate(snapshot, name.Granularity())
	logger.Debug("stage fan-out",
		logging.String(logging.FieldEventType, "stage_fanout"),
		logging.Int("items", len(items)),
		logging.String("granularity", string(name.Granularity())),
	)

	var (
		outcomes []outcome
		firstIdx int
	)
	if _, ok := stg.(stage.Sequential); ok {
		outcomes, firstIdx = r.sequence(ctx, stg, snapshot, items)
	} else {
		outcomes, firstIdx = r.fanOut(ctx, stg, items)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("stage %s cancelled: %w", name, ctxErr)
	}
	if firstIdx >= 0 {
		return nil, r.failure(logger, name, items, outcomes, firstIdx)
	}

	for i := range outcomes {
		fold(work, name.Granularity(), outcomes[i].item)
	}

	if finisher, ok := stg.(stage.Finisher); ok {
		if err := finisher.Finish(ctx, work); err != nil {
			return nil, wrapStageError(name, "finish", err)
		}
	}

	if err := work.Validate(); err != nil {
		return nil, services.Wrap(services.ErrInvariant, string(name), "validate", "reading order corrupted", err)
	}
	if err := manifest.CheckFrozen(doc, work, name.Frozen()); err != nil {
		return nil, services.Wrap(services.ErrInvariant, string(name), "check frozen fields", "committed structure rewritten", err)
	}
	return work, nil
}

// fanOut runs every item under the concurrency limit. Once an item fails the
// remaining queued items are skipped and in-flight ones are cancelled. It
// returns the index of the first failure or -1.
func (r *Runner) fanOut(ctx context.Context, stg stage.Stage, items []stage.Item) ([]outcome, int) {
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstIdx = -1
		done     int
	)
	outcomes := make([]outcome, len(items))
	sem := make(chan struct{}, limit)

dispatch:
	for i := range items {
		select {
		case sem <- struct{}{}:
		case <-stageCtx.Done():
			break dispatch
		}
		if stageCtx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := r.runItem(stageCtx, stg, items[i])
			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = outcome{item: out, err: err}
			if err != nil && firstIdx < 0 {
				firstIdx = i
				cancel()
			}
			done++
			if r.OnItem != nil {
				r.OnItem(stg.Name(), done, len(items))
			}
		}(i)
	}
	wg.Wait()
	return outcomes, firstIdx
}

// sequence runs items one at a time in reading order. Each item sees a
// document with the results of the items before it folded in. It stops at
// the first failure and returns its index or -1.
func (r *Runner) sequence(ctx context.Context, stg stage.Stage, snapshot *manifest.Comic, items []stage.Item) ([]outcome, int) {
	outcomes := make([]outcome, len(items))
	view := snapshot.Clone()
	granularity := stg.Name().Granularity()
	for i := range items {
		if ctx.Err() != nil {
			return outcomes, -1
		}
		item := items[i]
		item.Doc = view
		out, err := r.runItem(ctx, stg, item)
		outcomes[i] = outcome{item: out, err: err}
		if err != nil {
			return outcomes, i
		}
		fold(view, granularity, out)
		if r.OnItem != nil {
			r.OnItem(stg.Name(), i+1, len(items))
		}
	}
	return outcomes, -1
}

func (r *Runner) runItem(ctx context.Context, stg stage.Stage, item stage.Item) (out stage.Item, err error) {
	itemCtx := ctx
	if r.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, r.ItemTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: item panicked: %v", services.ErrStageFailure, rec)
		}
	}()

	out, err = stg.Run(itemCtx, item)
	if err == nil {
		out.Address = item.Address
		return out, nil
	}
	if errors.Is(itemCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return out, fmt.Errorf("%w: item exceeded %s: %w", services.ErrTimeout, r.ItemTimeout, err)
	}
	return out, err
}

func (r *Runner) failure(logger *slog.Logger, name stage.Name, items []stage.Item, outcomes []outcome, firstIdx int) error {
	first := outcomes[firstIdx].err
	others := 0
	for i, oc := range outcomes {
		if oc.err == nil || i == firstIdx {
			continue
		}
		if errors.Is(oc.err, context.Canceled) {
			// Cancelled because of the first failure, not a failure of its own.
			continue
		}
		others++
		logging.WarnWithContext(logger, "stage item failed",
			"stage_item_failure",
			logging.String("item", items[i].Address.Key()),
			logging.Error(oc.err),
			logging.String(logging.FieldImpact, "stage will be reported as failed"),
		)
	}
	logging.WarnWithContext(logger, "stage item failed",
		"stage_item_failure",
		logging.String("item", items[firstIdx].Address.Key()),
		logging.Error(first),
		logging.Int("failed_items", others+1),
		logging.String(logging.FieldImpact, "stage will be reported as failed"),
		logging.String(logging.FieldErrorHint, "check collaborator availability then reprocess"),
	)
	return &ItemError{Stage: name, Address: items[firstIdx].Address, Err: first, Others: others}
}

func wrapStageError(name stage.Name, operation string, err error) error {
	if errors.Is(err, services.ErrStageFailure) || errors.Is(err, services.ErrInvariant) {
		return fmt.Errorf("%s %s: %w", name, operation, err)
	}
	return services.Wrap(services.ErrStageFailure, string(name), operation, "", err)
}
