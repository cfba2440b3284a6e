package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/pipeline"
	"github.com/vk/featuregrid/internal/table"
)

// MetadataFile is written next to the stage tables.
const MetadataFile = "execution_metadata.json"

// Metadata describes one saved stage.
type Metadata struct {
	Model          string           `json:"model"`
	RunID          string           `json:"run_id"`
	SavedAt        time.Time        `json:"saved_at"`
	ComputedAt     time.Time        `json:"computed_at,omitzero"`
	Outputs        []string         `json:"outputs"`
	ExecutionOrder []string         `json:"execution_order"`
	Filters        []string         `json:"filters"`
	Attributes     []string         `json:"attributes"`
	RawInputs      []string         `json:"raw_inputs"`
	Tables         map[string]Shape `json:"tables"`
}

// Shape is the size of a saved table.
type Shape struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// CSV writes stage outputs as CSV files under <dir>/<model>/<run id>/.
type CSV struct {
	dir string
	now func() time.Time
}

// NewCSV returns a sink rooted at dir.
func NewCSV(dir string) *CSV {
	return &CSV{dir: dir, now: time.Now}
}

// Write implements pipeline.Sink.
func (s *CSV) Write(ctx context.Context, runID, model string, out *pipeline.Output) error {
	logger := ctxlog.FromContext(ctx)
	dir := filepath.Join(s.dir, model, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tables := map[string]*table.Table{
		"filters.csv": out.Rows,
		"attrs.csv":   out.Aggregates,
		"outputs.csv": out.Projected,
	}
	meta := Metadata{
		Model:      model,
		RunID:      runID,
		SavedAt:    s.now().UTC(),
		ComputedAt: out.Timestamp.UTC(),
		Tables:     make(map[string]Shape, len(tables)),
	}
	if out.Plan != nil {
		meta.Outputs = out.Plan.Outputs
		meta.ExecutionOrder = out.Plan.ExecutionOrder
		meta.Filters = out.Plan.Filters()
		meta.Attributes = out.Plan.Attributes()
		meta.RawInputs = out.Plan.RequiredRawInputs
	}

	for name, t := range tables {
		if t == nil {
			continue
		}
		if err := writeTable(filepath.Join(dir, name), t); err != nil {
			return err
		}
		rows, cols := t.Shape()
		meta.Tables[name] = Shape{Rows: rows, Columns: cols}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	logger.Info("Stage outputs saved.", "dir", dir)
	return nil
}

func writeTable(path string, t *table.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := table.WriteCSV(f, t); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var _ pipeline.Sink = (*CSV)(nil)
