package pipeline

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/featuregrid/internal/resolver"
	"github.com/vk/featuregrid/internal/table"
)

// Output is what one model stage produced.
type Output struct {
	// Rows is the stage input plus every row-level output.
	Rows *table.Table
	// Aggregates has one row per group key.
	Aggregates *table.Table
	// Projected holds the requested outputs and key columns only.
	Projected *table.Table
	Plan      *resolver.Plan
	// Timestamp is set by SetModelOutput.
	Timestamp time.Time
}

// Event is a diagnostic history entry. History is never read back by
// execution.
type Event struct {
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	Timestamp time.Time `json:"timestamp"`
}

// DatasetInfo describes one stored dataset.
type DatasetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Summary is a snapshot of a context.
type Summary struct {
	RunID    string        `json:"run_id"`
	Datasets []DatasetInfo `json:"datasets"`
	Models   []string      `json:"models"`
	Events   int           `json:"events"`
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithRunID replaces the generated run ID.
func WithRunID(id string) ContextOption {
	return func(c *Context) { c.runID = id }
}

// WithClock replaces the clock used to stamp history events.
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) { c.now = now }
}

// Context is the shared store of one pipeline run: named datasets, model
// outputs and history. It is safe for concurrent use.
type Context struct {
	mu       sync.RWMutex
	runID    string
	now      func() time.Time
	datasets map[string]*table.Table
	names    []string
	outputs  map[string]*Output
	models   []string
	history  []Event
}

// NewContext returns an empty context with a fresh run ID.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		runID:    uuid.NewString(),
		now:      time.Now,
		datasets: make(map[string]*table.Table),
		outputs:  make(map[string]*Output),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunID identifies this run in logs and saved outputs.
func (c *Context) RunID() string {
	return c.runID
}

// SetDataset stores t under name, replacing any previous dataset.
func (c *Context) SetDataset(name string, t *table.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDataset(name, t)
	c.record("set_dataset", name, t)
}

func (c *Context) setDataset(name string, t *table.Table) {
	if _, exists := c.datasets[name]; !exists {
		c.names = append(c.names, name)
	}
	c.datasets[name] = t
}

// Dataset returns the named dataset.
func (c *Context) Dataset(name string) (*table.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found in context", name)
	}
	return t, nil
}

// Datasets returns the stored dataset names in insertion order.
func (c *Context) Datasets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.names)
}

// FiltersDataset is the dataset name under which a model's row output is
// stored.
func FiltersDataset(model string) string { return model + "_filters" }

// AttrsDataset is the dataset name under which a model's aggregate output
// is stored.
func AttrsDataset(model string) string { return model + "_attrs" }

// SetModelOutput stamps and stores out and exposes its tables as the
// datasets <model>_filters and <model>_attrs, so later stages can read them.
func (c *Context) SetModelOutput(model string, out *Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out.Timestamp = c.now()
	if _, exists := c.outputs[model]; !exists {
		c.models = append(c.models, model)
	}
	c.outputs[model] = out
	c.setDataset(FiltersDataset(model), out.Rows)
	c.setDataset(AttrsDataset(model), out.Aggregates)
	c.record("model_output", model, out.Projected)
}

// ModelOutput returns the stored output of a model.
func (c *Context) ModelOutput(model string) (*Output, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, ok := c.outputs[model]
	return out, ok
}

// Record appends a diagnostic event.
func (c *Context) Record(action, subject string, t *table.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(action, subject, t)
}

func (c *Context) record(action, subject string, t *table.Table) {
	e := Event{Action: action, Subject: subject, Timestamp: c.now()}
	if t != nil {
		e.Rows, e.Columns = t.Shape()
	}
	c.history = append(c.history, e)
}

// History returns a copy of the recorded events.
func (c *Context) History() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.history)
}

// Summary returns a snapshot of the stored datasets and models.
func (c *Context) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Summary{
		RunID:    c.runID,
		Datasets: make([]DatasetInfo, 0, len(c.names)),
		Models:   slices.Clone(c.models),
		Events:   len(c.history),
	}
	for _, name := range c.names {
		rows, cols := c.datasets[name].Shape()
		s.Datasets = append(s.Datasets, DatasetInfo{Name: name, Rows: rows, Columns: cols})
	}
	return s
}
