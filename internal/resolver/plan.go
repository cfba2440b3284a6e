package resolver

import (
	"slices"
	"strings"

	"github.com/vk/featuregrid/internal/feature"
)

// Plan is the result of resolving a set of desired outputs. It is built per
// request and never mutated afterwards.
type Plan struct {
	// Outputs are the requested names, deduplicated, in request order.
	Outputs []string
	// RequiredFeatures is every feature needed, sorted by name.
	RequiredFeatures []string
	// RequiredRawInputs are the names that must come from the dataset or
	// configuration, sorted.
	RequiredRawInputs []string
	// ExecutionOrder lists RequiredFeatures so that dependencies come first.
	ExecutionOrder []string

	features  map[string]*feature.Feature
	kinds     map[string]feature.Kind
	producers map[string]string
}

// Feature returns the definition used for a required feature.
func (p *Plan) Feature(name string) *feature.Feature {
	return p.features[name]
}

// Kind returns the classified kind of a required feature.
func (p *Plan) Kind(name string) feature.Kind {
	return p.kinds[name]
}

// Producer returns the required feature producing column.
func (p *Plan) Producer(column string) (string, bool) {
	name, ok := p.producers[column]
	return name, ok
}

// OutputColumns expands the requested outputs into column names. A request
// naming a multi-output feature stands for all of its outputs.
func (p *Plan) OutputColumns() []string {
	var cols []string
	for _, out := range p.Outputs {
		if f, ok := p.features[out]; ok && !f.Produces(out) {
			cols = append(cols, f.OutputNames()...)
			continue
		}
		cols = append(cols, out)
	}
	return cols
}

// Pending returns the features of ExecutionOrder that still have to run
// when the columns reported by present already exist. A feature whose
// outputs are all present is skipped, and so are features needed only by
// skipped ones.
func (p *Plan) Pending(present func(column string) bool) []string {
	needed := make(map[string]bool)
	for _, out := range p.Outputs {
		if producer, ok := p.producers[out]; ok {
			needed[producer] = true
		}
	}
	run := make(map[string]bool)
	for i := len(p.ExecutionOrder) - 1; i >= 0; i-- {
		name := p.ExecutionOrder[i]
		if !needed[name] || p.satisfied(name, present) {
			continue
		}
		run[name] = true
		f := p.features[name]
		for _, dep := range append(slices.Clone(f.Inputs), f.DependsOn...) {
			if producer, ok := p.producers[dep]; ok && producer != name {
				needed[producer] = true
			}
		}
	}
	var out []string
	for _, name := range p.ExecutionOrder {
		if run[name] {
			out = append(out, name)
		}
	}
	return out
}

func (p *Plan) satisfied(name string, present func(string) bool) bool {
	for _, out := range p.features[name].OutputNames() {
		if !present(out) {
			return false
		}
	}
	return true
}

// Filters returns the row-level features in execution order.
func (p *Plan) Filters() []string {
	return p.ofKind(feature.KindRowLevel)
}

// Attributes returns the aggregate features in execution order.
func (p *Plan) Attributes() []string {
	return p.ofKind(feature.KindAggregate)
}

// HasAggregates reports whether any required feature is aggregate.
func (p *Plan) HasAggregates() bool {
	return len(p.Attributes()) > 0
}

func (p *Plan) ofKind(k feature.Kind) []string {
	var out []string
	for _, name := range p.ExecutionOrder {
		if p.kinds[name] == k {
			out = append(out, name)
		}
	}
	return out
}

// Tree renders the dependency tree below name. Raw inputs are leaves.
func (p *Plan) Tree(name string) string {
	var b strings.Builder
	b.WriteString(p.label(name))
	b.WriteByte('\n')
	p.writeChildren(&b, name, "")
	return b.String()
}

func (p *Plan) label(name string) string {
	if _, ok := p.features[name]; ok {
		return name + " [" + string(p.kinds[name]) + "]"
	}
	return name + " (raw)"
}

func (p *Plan) children(name string) []string {
	f, ok := p.features[name]
	if !ok {
		return nil
	}
	var out []string
	add := func(child string) {
		if producer, ok := p.producers[child]; ok {
			if producer == name {
				return
			}
			child = producer
		}
		if !slices.Contains(out, child) {
			out = append(out, child)
		}
	}
	for _, d := range f.DependsOn {
		add(d)
	}
	for _, in := range f.Inputs {
		add(in)
	}
	return out
}

func (p *Plan) writeChildren(b *strings.Builder, name, prefix string) {
	kids := p.children(name)
	for i, child := range kids {
		connector, next := "├── ", "│   "
		if i == len(kids)-1 {
			connector, next = "└── ", "    "
		}
		b.WriteString(prefix + connector + p.label(child) + "\n")
		p.writeChildren(b, child, prefix+next)
	}
}
