package drawsheet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/genai"
)

// Extractor runs the prompt → model → parse → retry pipeline for equipment
// datasheets and fans batches out over a bounded worker pool.
type Extractor struct {
	invoker Invoker
	log     *slog.Logger
}

// New returns an Extractor backed by the Google GenAI client, logging with
// slog.Default().
func New(client *genai.Client) *Extractor {
	return NewWithLogger(client, nil)
}

// NewWithLogger lets the caller supply their own logger.
func NewWithLogger(client *genai.Client, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{invoker: NewGenaiInvoker(client, log), log: log}
}

// NewWithInvoker wires a custom transport; tests and non-Gemini deployments
// use this.
func NewWithInvoker(inv Invoker, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{invoker: inv, log: log}
}

// ExtractEquipment runs the full round loop for one equipment item: initial
// prompt, then targeted retries for whatever is still missing, bounded by
// MaxRounds. The returned result always carries every schema component.
// The error mirrors result.Err: non-nil only for terminal per-item faults,
// never for a clean partial that ran out of rounds.
func (x *Extractor) ExtractEquipment(ctx context.Context, schema EquipmentSchema, ref ImageRef, optFns ...func(*Options)) (EquipmentResult, error) {
	opts := newOptions(optFns)
	compose := NewComposer(opts.Prompts)

	x.log.Debug("extraction started",
		"equipment_id", schema.EquipmentID,
		"components", len(schema.ComponentNames()),
		"fields", schema.FieldCount(),
		"model", opts.Model,
		"max_rounds", opts.MaxRounds)

	img, err := ref.Resolve(ctx)
	if err != nil {
		x.log.Debug("image resolution failed", "equipment_id", schema.EquipmentID, "error", err)
		res := emptyResult(schema)
		res.Err = err
		return res, err
	}

	state := map[string]map[string]string{}
	missing := schema.fullMissing()
	var attempts []Attempt
	var lastErr error
	rounds := 0

	for round := 1; ; round++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		var prompt string
		var composeErr error
		if round == 1 {
			prompt, composeErr = compose.Initial(schema)
		} else {
			prompt, composeErr = compose.Retry(schema, missing)
		}
		if composeErr != nil {
			lastErr = composeErr
			break
		}

		raw, genErr := x.generateRound(ctx, opts, prompt, img)
		rounds = round
		attempt := Attempt{
			EquipmentID: schema.EquipmentID,
			Round:       round,
			Prompt:      prompt,
			RawResponse: string(raw),
			Timestamp:   time.Now(),
		}

		if genErr != nil {
			// Absorbed locally: everything requested this round stays missing.
			x.log.Debug("round failed", "equipment_id", schema.EquipmentID, "round", round, "error", genErr)
			lastErr = genErr
			attempts = append(attempts, attempt)
			if planNextRound(missing, round, opts.MaxRounds) == nil {
				break
			}
			continue
		}

		newState, newMissing, parseErr := parseRound(raw, schema, state)
		if parseErr != nil {
			x.log.Debug("round parse failed", "equipment_id", schema.EquipmentID, "round", round, "error", parseErr)
			lastErr = parseErr
		} else {
			attempt.ParseOK = true
			state, missing = newState, newMissing
			lastErr = nil
		}
		attempts = append(attempts, attempt)

		x.log.Debug("round completed",
			"equipment_id", schema.EquipmentID,
			"round", round,
			"parse_ok", attempt.ParseOK,
			"missing_fields", missing.Total())

		if planNextRound(missing, round, opts.MaxRounds) == nil {
			break
		}
	}

	result := EquipmentResult{
		EquipmentID:   schema.EquipmentID,
		Components:    assembleComponents(schema, state),
		RoundsUsed:    rounds,
		FullyResolved: missing.Empty(),
		Missing:       missing.clone(),
		Attempts:      attempts,
		Err:           lastErr,
	}

	x.log.Info("extraction finished",
		"equipment_id", schema.EquipmentID,
		"rounds_used", result.RoundsUsed,
		"fully_resolved", result.FullyResolved,
		"missing_fields", result.Missing.Total())
	return result, lastErr
}

// generateRound issues one model call with the per-call timeout and bounded
// transport retry. Content-level retry is the planner's decision, not ours.
func (x *Extractor) generateRound(ctx context.Context, opts Options, prompt string, img DrawingImage) ([]byte, error) {
	if g, ok := x.invoker.(*GenaiInvoker); ok {
		g.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}
	var raw []byte
	err := retryable(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		callCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		raw2, genErr := x.invoker.Generate(callCtx, opts.Model, prompt, img)
		if genErr != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				// A timed-out call is indistinguishable from any other
				// transport fault for this round.
				return fmt.Errorf("model call timed out: %w", ErrExternalService)
			}
			return genErr
		}
		raw = raw2
		return nil
	}, opts.MaxRetries, opts.Backoff, x.log)
	return raw, err
}

// RunBatch schedules one extraction pipeline per equipment id on a bounded
// worker pool and aggregates results. A single pipeline's failure never
// aborts the batch: the failing id is recorded with FullyResolved=false and
// the pool moves on. Completion order is not submission order. The progress
// sink is serialized and reaches (total, total) exactly once, as the final
// update, even when every pipeline failed or the context was cancelled.
func (x *Extractor) RunBatch(
	ctx context.Context,
	reg *Registry,
	equipmentIDs []string,
	locator Locator,
	sink ProgressSink,
	optFns ...func(*Options),
) (map[string]EquipmentResult, error) {
	if len(equipmentIDs) == 0 {
		return nil, fmt.Errorf("run batch: %w", ErrNoEquipment)
	}
	if locator == nil {
		return nil, fmt.Errorf("run batch: %w", ErrNoLocator)
	}

	// Duplicate ids would double-count progress.
	ids := make([]string, 0, len(equipmentIDs))
	seen := make(map[string]struct{}, len(equipmentIDs))
	for _, id := range equipmentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	opts := newOptions(optFns)
	runner := opts.Runner
	if runner == nil {
		runner = newErrGroupRunner(ctx, opts.Concurrency)
	}

	total := len(ids)
	x.log.Info("batch started", "items", total, "concurrency", opts.Concurrency, "model", opts.Model)

	var (
		mu        sync.Mutex
		completed int
		results   = make(map[string]EquipmentResult, total)
	)
	record := func(res EquipmentResult, status string) {
		mu.Lock()
		defer mu.Unlock()
		results[res.EquipmentID] = res
		completed++
		if sink != nil && completed < total {
			sink(Progress{Completed: completed, Total: total, Status: status})
		}
	}

	for _, id := range ids {
		id := id
		runner.Go(func() error {
			if ctx.Err() != nil {
				res := EquipmentResult{EquipmentID: id, Err: ctx.Err()}
				if schema, ok := reg.Get(id); ok {
					res = emptyResult(schema)
					res.Err = ctx.Err()
				}
				record(res, fmt.Sprintf("cancelled %s", id))
				return nil
			}

			schema, ok := reg.Get(id)
			if !ok {
				record(EquipmentResult{
					EquipmentID: id,
					Err:         fmt.Errorf("equipment %q: %w", id, ErrNoSchema),
				}, fmt.Sprintf("skipped %s (no schema)", id))
				return nil
			}

			ref, err := locator.ImageRef(ctx, id)
			if err != nil {
				res := emptyResult(schema)
				res.Err = fmt.Errorf("locate drawing for %q: %w", id, err)
				record(res, fmt.Sprintf("failed %s", id))
				return nil
			}

			res, resErr := x.ExtractEquipment(ctx, schema, ref, optFns...)
			status := fmt.Sprintf("processed %s", id)
			if resErr != nil {
				status = fmt.Sprintf("failed %s", id)
			}
			record(res, status)
			return nil
		})
	}

	// Tasks absorb their own failures; Wait only joins.
	_ = runner.Wait()

	if sink != nil {
		sink(Progress{Completed: total, Total: total, Status: "batch completed"})
	}
	resolved := 0
	for _, res := range results {
		if res.FullyResolved {
			resolved++
		}
	}
	x.log.Info("batch finished", "items", total, "fully_resolved", resolved)
	return results, nil
}

// emptyResult is the shape handed back for items that never got a usable
// round: every schema component present, every field empty.
func emptyResult(schema EquipmentSchema) EquipmentResult {
	return EquipmentResult{
		EquipmentID: schema.EquipmentID,
		Components:  assembleComponents(schema, nil),
		Missing:     schema.fullMissing(),
	}
}
