package drawsheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// wireEnvelope is the documented return shape. Some models nest the whole
// document under an "equipment" key; both layouts are accepted.
type wireEnvelope struct {
	EquipmentNumber string           `json:"equipment_number"`
	PMTNumber       string           `json:"pmt_number"`
	Description     string           `json:"description"`
	Components      []map[string]any `json:"components"`
	Equipment       *struct {
		Components []map[string]any `json:"components"`
	} `json:"equipment"`
}

// envelopeSchemaMap is the structural contract the model's answer must meet
// before any field-level validation happens. Deliberately lenient: extra
// keys pass, values stay untyped free text.
func envelopeSchemaMap() map[string]any {
	components := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"component_name": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []any{"component_name"},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"components": components,
			"equipment": map[string]any{
				"type":       "object",
				"properties": map[string]any{"components": components},
				"required":   []any{"components"},
			},
		},
		"anyOf": []any{
			map[string]any{"required": []any{"components"}},
			map[string]any{"required": []any{"equipment"}},
		},
	}
}

var (
	envelopeOnce   sync.Once
	envelopeSchema *jsonschema.Schema
	envelopeErr    error
)

func compiledEnvelopeSchema() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		b, err := json.Marshal(envelopeSchemaMap())
		if err != nil {
			envelopeErr = fmt.Errorf("marshal envelope schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("envelope.json", bytes.NewReader(b)); err != nil {
			envelopeErr = fmt.Errorf("add envelope schema: %w", err)
			return
		}
		envelopeSchema, envelopeErr = compiler.Compile("envelope.json")
	})
	return envelopeSchema, envelopeErr
}

// parseEnvelope sanitizes raw model text and interprets it as the expected
// structure. Anything that cannot be interpreted maps to
// ErrMalformedResponse, which the round loop absorbs as "nothing resolved".
func parseEnvelope(raw []byte) ([]map[string]any, error) {
	clean := SanitizeJSONResponse(raw)

	var generic any
	if err := json.Unmarshal(clean, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	schema, err := compiledEnvelopeSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var env wireEnvelope
	if err := json.Unmarshal(clean, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	components := env.Components
	if len(components) == 0 && env.Equipment != nil {
		components = env.Equipment.Components
	}
	return components, nil
}

// parseRound folds one round's raw response into the running extraction
// state. prior holds fields resolved in earlier rounds and is never
// overwritten: once a field is accepted it is carried forward even when the
// new text omits or contradicts it. Components the model invented are
// ignored; only schema-listed components are authoritative.
func parseRound(raw []byte, schema EquipmentSchema, prior map[string]map[string]string) (map[string]map[string]string, MissingReport, error) {
	wire, err := parseEnvelope(raw)
	if err != nil {
		return prior, missingFrom(schema, prior), err
	}

	// Exact name lookup; fuzzy reconciliation is a downstream concern.
	byName := make(map[string]map[string]any, len(wire))
	for _, entry := range wire {
		name, _ := entry["component_name"].(string)
		if name == "" {
			continue
		}
		if _, dup := byName[name]; !dup {
			byName[name] = entry
		}
	}

	state := cloneState(prior)
	for _, comp := range schema.Components() {
		entry := byName[comp.Name]
		if entry == nil {
			continue // all of this component's fields stay missing this round
		}
		resolved := state[comp.Name]
		for _, f := range comp.Fields {
			if _, done := resolved[f.Name]; done {
				continue
			}
			value, ok := normalizeFieldValue(entry[f.Name])
			if !ok {
				continue
			}
			if resolved == nil {
				resolved = make(map[string]string)
				state[comp.Name] = resolved
			}
			resolved[f.Name] = value
		}
	}
	return state, missingFrom(schema, state), nil
}

// normalizeFieldValue turns a wire value into a resolved string. Empty
// strings and the literals "none"/"null" count as not found. Numeric values
// are kept as opaque text; no unit normalization happens here.
func normalizeFieldValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// missingFrom computes the per-component unresolved field list. Fields
// present in state never reappear here, so reports only ever shrink.
func missingFrom(schema EquipmentSchema, state map[string]map[string]string) MissingReport {
	missing := make(MissingReport)
	for _, comp := range schema.Components() {
		resolved := state[comp.Name]
		var fields []string
		for _, f := range comp.Fields {
			if _, done := resolved[f.Name]; !done {
				fields = append(fields, f.Name)
			}
		}
		if len(fields) > 0 {
			missing[comp.Name] = fields
		}
	}
	return missing
}

// assembleComponents produces the final component list: one entry per schema
// component in schema order, with "" for everything that never resolved.
func assembleComponents(schema EquipmentSchema, state map[string]map[string]string) []ExtractedComponent {
	comps := schema.Components()
	out := make([]ExtractedComponent, len(comps))
	for i, comp := range comps {
		fields := make(map[string]string, len(comp.Fields))
		for _, f := range comp.Fields {
			fields[f.Name] = state[comp.Name][f.Name]
		}
		out[i] = ExtractedComponent{Name: comp.Name, Fields: fields}
	}
	return out
}

func cloneState(state map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(state))
	for name, fields := range state {
		inner := make(map[string]string, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		out[name] = inner
	}
	return out
}
