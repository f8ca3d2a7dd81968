package drawsheet

import "fmt"

// planNextRound decides whether another extraction pass is warranted.
// Returns nil when the report is empty (done) or the round budget is spent
// (partial result accepted); otherwise the report passes through unchanged
// for the retry prompt. The loop is therefore bounded by maxRounds model
// calls per equipment item regardless of model behavior.
func planNextRound(missing MissingReport, round, maxRounds int) MissingReport {
	if missing.Empty() {
		return nil
	}
	if round >= maxRounds {
		return nil
	}
	return missing
}

// BatchEstimate is a worst-case projection of what a batch will cost,
// computed without touching the network.
type BatchEstimate struct {
	Items        int
	ModelCalls   int
	InputTokens  int
	OutputTokens int
	PerEquipment map[string]int // input tokens of the initial prompt per item
}

// EstimateBatch sizes a batch before running it: every item is assumed to
// use its full round budget, each round re-sending roughly the initial
// prompt. Useful for rate-limit and cost planning against the vision
// service.
func EstimateBatch(reg *Registry, equipmentIDs []string, optFns ...func(*Options)) (BatchEstimate, error) {
	if len(equipmentIDs) == 0 {
		return BatchEstimate{}, ErrNoEquipment
	}
	opts := newOptions(optFns)
	compose := NewComposer(opts.Prompts)

	est := BatchEstimate{PerEquipment: make(map[string]int, len(equipmentIDs))}
	for _, id := range equipmentIDs {
		schema, ok := reg.Get(id)
		if !ok {
			return BatchEstimate{}, fmt.Errorf("estimate %q: %w", id, ErrNoSchema)
		}
		prompt, err := compose.Initial(schema)
		if err != nil {
			return BatchEstimate{}, fmt.Errorf("estimate %q: %w", id, err)
		}
		in := estimateTokens(prompt)
		est.Items++
		est.ModelCalls += opts.MaxRounds
		est.InputTokens += in * opts.MaxRounds
		est.OutputTokens += estimateOutputTokens(schema) * opts.MaxRounds
		est.PerEquipment[id] = in
	}
	return est, nil
}

// estimateOutputTokens guesses the answer size from the field count: JSON
// scaffolding plus a short free-text value per field.
func estimateOutputTokens(schema EquipmentSchema) int {
	fields := schema.FieldCount()
	return 20 + len(schema.ComponentNames())*8 + fields*12
}
