package handlers

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/featuregrid/internal/feature"
)

// Module is the interface that all compiled routine modules implement to be registered.
type Module interface {
	Register(h *Handlers)
}

// Handlers holds all the registered routines, keyed by the name manifests use.
type Handlers struct {
	all map[string]*feature.Routine
}

// New creates and initializes a new Handlers instance.
func New() *Handlers {
	return &Handlers{
		all: make(map[string]*feature.Routine),
	}
}

// RegisterHandler registers a compiled routine under name. Registering the
// same name twice is a programmer error and panics.
func (h *Handlers) RegisterHandler(name string, routine *feature.Routine) {
	if _, exists := h.all[name]; exists {
		panic(fmt.Sprintf("routine with name '%s' already registered", name))
	}
	if routine == nil || (routine.Row == nil && routine.Group == nil) {
		panic(fmt.Sprintf("routine '%s' has neither a row nor a group form", name))
	}
	slog.Debug("Registering routine.", "name", name)
	if routine.Name == "" {
		routine.Name = name
	}
	h.all[name] = routine
}

// Get returns the routine registered under name.
func (h *Handlers) Get(name string) (*feature.Routine, bool) {
	r, ok := h.all[name]
	return r, ok
}

// Names returns all registered routine names, sorted.
func (h *Handlers) Names() []string {
	names := make([]string, 0, len(h.all))
	for name := range h.all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered routines.
func (h *Handlers) Len() int {
	return len(h.all)
}
