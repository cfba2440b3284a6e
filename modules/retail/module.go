// Package retail provides the reference retail pricing features: compiled
// routines registered under "retail.*" and the manifests that declare them.
package retail

import (
	"embed"
	"io/fs"

	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/handlers"
)

//go:embed features
var manifests embed.FS

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Register registers the retail routines.
func (m *Module) Register(h *handlers.Handlers) {
	h.RegisterHandler("retail.price_per_unit", feature.Row("", PricePerUnit))
	h.RegisterHandler("retail.profit_margin", feature.Row("", ProfitMargin))
	h.RegisterHandler("retail.price_index", feature.Row("", PriceIndex))
	h.RegisterHandler("retail.high_value", feature.Row("", HighValue))
	h.RegisterHandler("retail.discount_pct", feature.Group("", DiscountPct))
	h.RegisterHandler("retail.total_revenue", feature.Group("", TotalRevenue))
	h.RegisterHandler("retail.avg_price", feature.Group("", AvgPrice))
}

// Features returns the manifest tree, laid out as <model>/<feature>/.
func Features() fs.FS {
	sub, err := fs.Sub(manifests, "features")
	if err != nil {
		panic(err)
	}
	return sub
}

var _ handlers.Module = (*Module)(nil)
