package drawsheet

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"
)

// Template tags known to the engine.
const (
	PromptInitial = "initial"
	PromptRetry   = "retry"
)

// initialTemplate asks for every component and every expected field in one
// pass. The return shape is spelled out verbatim so the parser can hold the
// model to it.
const initialTemplate = `You are reading a scanned engineering drawing for equipment {{ equipment_number }}.{% if pmt_number %} Secondary reference (PMT): {{ pmt_number }}.{% endif %}{% if description %} Description: {{ description }}.{% endif %}

Extract datasheet values for every component listed below. Values in parentheses are expected values from prior records; use them as hints only and report what the drawing actually shows.

{{ component_list }}

Return ONLY valid JSON with no prose and no markdown fences, shaped exactly as:
{"equipment_number": "...", "pmt_number": "...", "description": "...", "components": [{"component_name": "...", "phase": "...", "fluid": "...", "material_spec": "...", "material_grade": "...", "insulation": "...", "design_temp": "...", "design_pressure": "...", "operating_temp": "...", "operating_pressure": "..."}]}

Include exactly one entry per listed component, using the component names exactly as given above. Keep temperature and pressure values as written on the drawing, units included. Use "" for any value not visible; never write null or none. Do not invent components that are not listed.`

// retryTemplate targets only the fields a previous pass failed to read.
const retryTemplate = `This is a follow-up pass over the same scanned drawing for equipment {{ equipment_number }}. The fields listed below could not be read on the previous pass. Look at the drawing again, including title blocks, notes and tables, and report only these fields.

{{ missing_list }}

Return ONLY valid JSON with no prose and no markdown fences, shaped as:
{"components": [{"component_name": "...", "field_name": "value"}]}

Include one entry per listed component with only its listed fields, using the component and field names exactly as given. Use "" for anything still not visible; never write null or none. Do not return any other components or fields.`

// StickPromptProvider renders prompt templates with Twig syntax via stick.
// Built-in templates can be replaced per tag, or loaded from a filesystem.
type StickPromptProvider struct {
	env       *stick.Env
	templates map[string]string
}

// PromptOption configures a StickPromptProvider.
type PromptOption func(*StickPromptProvider) error

// WithTemplates injects an in-memory template map.
func WithTemplates(m map[string]string) PromptOption {
	return func(p *StickPromptProvider) error {
		for tag, tpl := range m {
			p.templates[tag] = tpl
		}
		return nil
	}
}

// WithTemplateFS loads every *.twig file found under dir; the file base name
// becomes the template tag.
func WithTemplateFS(fsys fs.FS, dir string) PromptOption {
	return func(p *StickPromptProvider) error {
		return fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".twig") {
				return nil
			}
			content, readErr := fs.ReadFile(fsys, path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			tag := strings.TrimSuffix(filepath.Base(path), ".twig")
			p.templates[tag] = string(content)
			return nil
		})
	}
}

// NewStickPromptProvider builds a provider seeded with the built-in initial
// and retry templates, then applies options.
func NewStickPromptProvider(opts ...PromptOption) (*StickPromptProvider, error) {
	p := &StickPromptProvider{
		env: stick.New(nil),
		templates: map[string]string{
			PromptInitial: initialTemplate,
			PromptRetry:   retryTemplate,
		},
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DefaultPrompts returns a provider with only the built-in templates.
func DefaultPrompts() *StickPromptProvider {
	p, _ := NewStickPromptProvider()
	return p
}

// AddTemplate updates or inserts one template.
func (p *StickPromptProvider) AddTemplate(tag, tpl string) { p.templates[tag] = tpl }

// GetPrompt renders the template for the given tag with the supplied
// variables. Rendering is a pure function of tag and vars.
func (p *StickPromptProvider) GetPrompt(tag string, vars map[string]any) (string, error) {
	tpl, ok := p.templates[tag]
	if !ok {
		return "", fmt.Errorf("template %q not found", tag)
	}
	templateCtx := make(map[string]stick.Value, len(vars)+1)
	templateCtx["tag"] = tag
	for k, v := range vars {
		templateCtx[k] = v
	}
	var out strings.Builder
	if err := p.env.Execute(tpl, &out, templateCtx); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return out.String(), nil
}

// Composer builds the initial and retry prompts for one equipment schema.
type Composer struct {
	prompts PromptProvider
}

// NewComposer wraps a prompt provider; nil falls back to the built-in
// templates.
func NewComposer(p PromptProvider) *Composer {
	if p == nil {
		p = DefaultPrompts()
	}
	return &Composer{prompts: p}
}

// Initial renders the first-pass prompt listing every component and field.
// Deterministic for identical schemas: components and fields appear in
// schema order.
func (c *Composer) Initial(s EquipmentSchema) (string, error) {
	return c.prompts.GetPrompt(PromptInitial, map[string]any{
		"equipment_number": s.EquipmentID,
		"pmt_number":       s.PMTNumber,
		"description":      s.Description,
		"component_list":   componentList(s),
	})
}

// Retry renders the follow-up prompt for the fields still missing after a
// round. Components with nothing missing are left out entirely.
func (c *Composer) Retry(s EquipmentSchema, missing MissingReport) (string, error) {
	if missing.Empty() {
		return "", fmt.Errorf("retry prompt: nothing is missing for equipment %q", s.EquipmentID)
	}
	return c.prompts.GetPrompt(PromptRetry, map[string]any{
		"equipment_number": s.EquipmentID,
		"pmt_number":       s.PMTNumber,
		"missing_list":     missingList(s, missing),
	})
}

// componentList renders one bullet per component with its expected fields
// and hints, in schema order.
func componentList(s EquipmentSchema) string {
	var b strings.Builder
	for _, comp := range s.Components() {
		b.WriteString("- ")
		b.WriteString(comp.Name)
		b.WriteString(": ")
		for i, f := range comp.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name)
			if f.Hint != "" {
				b.WriteString(" (expected: ")
				b.WriteString(f.Hint)
				b.WriteString(")")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// missingList renders one bullet per component that still has missing
// fields, keeping schema order and carrying hints where the schema has them.
func missingList(s EquipmentSchema, missing MissingReport) string {
	var b strings.Builder
	for _, comp := range s.Components() {
		fields := missing[comp.Name]
		if len(fields) == 0 {
			continue
		}
		hints := make(map[string]string, len(comp.Fields))
		for _, f := range comp.Fields {
			hints[f.Name] = f.Hint
		}
		b.WriteString("- ")
		b.WriteString(comp.Name)
		b.WriteString(": ")
		for i, name := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(name)
			if hint := hints[name]; hint != "" {
				b.WriteString(" (expected: ")
				b.WriteString(hint)
				b.WriteString(")")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
