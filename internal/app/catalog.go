package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/feature"
)

// CatalogQuery narrows the features listed by Catalog. Empty fields match
// everything.
type CatalogQuery struct {
	Search   string
	Tag      string
	Category string
	Stats    bool
}

// Catalog lists the features of the store, or prints catalog statistics as
// JSON when q.Stats is set.
func (a *App) Catalog(ctx context.Context, q CatalogQuery) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	c, err := a.store.Catalog(ctx)
	if err != nil {
		return err
	}

	if q.Stats {
		enc := json.NewEncoder(a.outW)
		enc.SetIndent("", "  ")
		return enc.Encode(c.Statistics())
	}

	features := c.All()
	if q.Search != "" {
		features = c.Search(q.Search)
	}
	tw := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCATEGORY\tINPUTS\tOUTPUTS\tDESCRIPTION")
	for _, f := range features {
		if q.Tag != "" && !f.HasTag(q.Tag) {
			continue
		}
		if q.Category != "" && string(f.Category) != q.Category {
			continue
		}
		kind := string(f.Kind)
		if f.Kind == feature.KindUnset {
			kind = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Name, kind, f.Category,
			strings.Join(f.Inputs, ","), strings.Join(f.OutputNames(), ","), f.Description)
	}
	return tw.Flush()
}
