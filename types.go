package drawsheet

import (
	"context"
	"time"
)

// DefaultModel is used when no model is configured per call.
const DefaultModel = "gemini-2.0-flash"

// ExtractedComponent is one component of the final datasheet. Fields maps
// canonical field name to the extracted value; an empty string means the
// value was never found. Name equality with the schema is not assumed by
// downstream renderers, which is why the matcher exists.
type ExtractedComponent struct {
	Name   string            `json:"component_name"`
	Fields map[string]string `json:"fields"`
}

// Field returns the extracted value for a field name, "" when unresolved.
func (c ExtractedComponent) Field(name string) string {
	return c.Fields[name]
}

// MissingReport maps component name to the field names still unresolved
// after a round. An empty report means extraction is complete.
type MissingReport map[string][]string

// Empty reports whether nothing is missing.
func (m MissingReport) Empty() bool {
	for _, fields := range m {
		if len(fields) > 0 {
			return false
		}
	}
	return true
}

// Total counts the unresolved fields across all components.
func (m MissingReport) Total() int {
	n := 0
	for _, fields := range m {
		n += len(fields)
	}
	return n
}

func (m MissingReport) clone() MissingReport {
	out := make(MissingReport, len(m))
	for name, fields := range m {
		out[name] = append([]string(nil), fields...)
	}
	return out
}

// Attempt records one prompt/response cycle for diagnostics. Attempts are
// carried on the result and never persisted by the engine.
type Attempt struct {
	EquipmentID string
	Round       int
	Prompt      string
	RawResponse string
	ParseOK     bool
	Timestamp   time.Time
}

// EquipmentResult is the sole artifact handed to collaborators. Components
// holds exactly one entry per schema component, in schema order, even when
// retries exhausted without resolving anything.
type EquipmentResult struct {
	EquipmentID   string
	Components    []ExtractedComponent
	RoundsUsed    int
	FullyResolved bool
	Missing       MissingReport
	Attempts      []Attempt

	// Err carries the last terminal failure for items that did not fully
	// resolve; nil for clean partials that simply ran out of rounds.
	Err error
}

// Progress is a snapshot of batch completion handed to the progress sink.
type Progress struct {
	Completed int
	Total     int
	Status    string
}

// ProgressSink receives progress updates. Calls are serialized by the batch
// runner; the final call always carries Completed == Total, exactly once.
type ProgressSink func(Progress)

// Runner lets the batch schedule work with any concurrency model.
type Runner interface {
	Go(fn func() error) // schedule
	Wait() error        // join / propagate first err
}

// Invoker issues one generation call against a vision-capable model.
// Implementations map transport faults to ErrExternalService and empty
// answers to ErrModelResponse; they never retry for content.
type Invoker interface {
	Generate(ctx context.Context, model string, prompt string, image DrawingImage) ([]byte, error)
}

// PromptProvider returns rendered prompt text for a template tag.
type PromptProvider interface {
	GetPrompt(tag string, vars map[string]any) (string, error)
}

// Locator resolves an equipment id to a fetchable drawing-page reference.
type Locator interface {
	ImageRef(ctx context.Context, equipmentID string) (ImageRef, error)
}

// LocatorFunc adapts a lookup function to the Locator interface.
type LocatorFunc func(ctx context.Context, equipmentID string) (ImageRef, error)

func (f LocatorFunc) ImageRef(ctx context.Context, equipmentID string) (ImageRef, error) {
	return f(ctx, equipmentID)
}

// Options represents per-call configuration for extraction.
type Options struct {
	Model           string
	MaxRounds       int           // vision calls per equipment item, hard bound
	Concurrency     int           // parallel pipelines in a batch
	Timeout         time.Duration // per model call
	MaxRetries      int           // transport-level retries inside one round
	Backoff         time.Duration // backoff base for transport retries
	MaxOutputTokens int
	Runner          Runner         // nil → errgroup runner with Concurrency
	Prompts         PromptProvider // nil → built-in templates
}

// newOptions seeds defaults and applies the caller's functional options.
func newOptions(optFns []func(*Options)) Options {
	opts := Options{
		Model:           DefaultModel,
		MaxRounds:       2,
		Concurrency:     4,
		Timeout:         45 * time.Second,
		MaxRetries:      1, // at most 2 transport attempts per round
		Backoff:         500 * time.Millisecond,
		MaxOutputTokens: 2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRounds < 1 {
		opts.MaxRounds = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return opts
}

// Functional option constructors
func WithModel(name string) func(*Options) {
	return func(o *Options) { o.Model = name }
}

func WithMaxRounds(n int) func(*Options) {
	return func(o *Options) { o.MaxRounds = n }
}

func WithConcurrency(n int) func(*Options) {
	return func(o *Options) { o.Concurrency = n }
}

func WithTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Timeout = d }
}

func WithTransportRetry(max int, backoff time.Duration) func(*Options) {
	return func(o *Options) {
		o.MaxRetries = max
		o.Backoff = backoff
	}
}

func WithMaxOutputTokens(n int) func(*Options) {
	return func(o *Options) { o.MaxOutputTokens = n }
}

func WithRunner(r Runner) func(*Options) {
	return func(o *Options) { o.Runner = r }
}

func WithPrompts(p PromptProvider) func(*Options) {
	return func(o *Options) { o.Prompts = p }
}
