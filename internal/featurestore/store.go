package featurestore

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/vk/featuregrid/internal/catalog"
	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/feature"
	"github.com/vk/featuregrid/internal/fsutil"
	"github.com/vk/featuregrid/internal/handlers"
	"github.com/vk/featuregrid/internal/hcl"
)

const (
	hclDescriptor  = "feature.hcl"
	jsonDescriptor = "metadata.json"
)

// Option configures a Store.
type Option func(*Store)

// WithDecoder replaces the HCL manifest decoder.
func WithDecoder(d config.FeatureDecoder) Option {
	return func(s *Store) { s.decoder = d }
}

// WithRawInputs declares names that depends_on may reference without a
// feature of that name in the store.
func WithRawInputs(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.rawInputs[n] = struct{}{}
		}
	}
}

// Store serves feature definitions from a directory tree laid out as
// <model>/<feature>/ with a feature.hcl or metadata.json descriptor and an
// optional routine source file. Definitions are read on first use and
// cached. A Store is safe for concurrent use.
type Store struct {
	fsys     fs.FS
	handlers *handlers.Handlers
	decoder  config.FeatureDecoder
	validate *validator.Validate

	rawInputs map[string]struct{}

	// index maps a feature name to its descriptor path.
	index map[string]string

	mu      sync.Mutex
	loaded  map[string]*feature.Feature
	owners  map[string]string
	scanned bool
}

// New indexes the descriptors in fsys. No descriptor is parsed yet.
func New(fsys fs.FS, h *handlers.Handlers, opts ...Option) (*Store, error) {
	s := &Store{
		fsys:      fsys,
		handlers:  h,
		decoder:   hcl.NewLoader(),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		rawInputs: make(map[string]struct{}),
		index:     make(map[string]string),
		loaded:    make(map[string]*feature.Feature),
		owners:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, ext := range []string{".hcl", ".json"} {
		files, err := fsutil.FindFilesByExtension(fsys, ".", ext)
		if err != nil {
			return nil, fmt.Errorf("failed to index feature store: %w", err)
		}
		for _, file := range files {
			base := path.Base(file)
			if base != hclDescriptor && base != jsonDescriptor {
				continue
			}
			name := path.Base(path.Dir(file))
			if prev, dup := s.index[name]; dup {
				if path.Dir(prev) == path.Dir(file) {
					return nil, fmt.Errorf("feature %q has both %s and %s", name, hclDescriptor, jsonDescriptor)
				}
				return nil, fmt.Errorf("%w (%s and %s)", &feature.DuplicateFeatureError{Name: name}, prev, file)
			}
			s.index[name] = file
		}
	}
	return s, nil
}

// Names returns every indexed feature name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup implements resolver.Source.
func (s *Store) Lookup(ctx context.Context, name string) (*feature.Feature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, name)
}

// OwnerOf implements resolver.Source. A feature name owns itself; any other
// column requires every descriptor to be read once.
func (s *Store) OwnerOf(ctx context.Context, column string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[column]; ok {
		return owner, true, nil
	}
	if !s.scanned {
		if err := s.loadAll(ctx); err != nil {
			return "", false, err
		}
		if owner, ok := s.owners[column]; ok {
			return owner, true, nil
		}
	}
	if _, ok := s.index[column]; ok {
		return column, true, nil
	}
	return "", false, nil
}

// Catalog reads every descriptor and builds an in-memory catalog from them.
func (s *Store) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	s.mu.Lock()
	if err := s.loadAll(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	features := make([]*feature.Feature, 0, len(s.loaded))
	for _, name := range s.Names() {
		features = append(features, s.loaded[name])
	}
	s.mu.Unlock()

	b := catalog.NewBuilder()
	for name := range s.rawInputs {
		b.DeclareRawInputs(name)
	}
	for _, f := range features {
		if err := b.Register(f); err != nil {
			return nil, err
		}
	}
	return b.Build(ctx)
}

func (s *Store) loadAll(ctx context.Context) error {
	for _, name := range s.Names() {
		if _, err := s.load(ctx, name); err != nil {
			return err
		}
	}
	s.scanned = true
	return nil
}

func (s *Store) load(ctx context.Context, name string) (*feature.Feature, error) {
	if f, ok := s.loaded[name]; ok {
		return f, nil
	}
	file, ok := s.index[name]
	if !ok {
		return nil, &feature.UnknownFeatureError{Name: name}
	}

	f, err := s.read(ctx, name, file)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature %q: %w", name, err)
	}
	for _, dep := range f.DependsOn {
		if _, ok := s.index[dep]; ok {
			continue
		}
		if _, ok := s.rawInputs[dep]; ok {
			continue
		}
		return nil, &feature.UnknownFeatureError{Name: dep, Referrer: name}
	}
	for _, out := range f.OutputNames() {
		if owner, taken := s.owners[out]; taken && owner != name {
			return nil, fmt.Errorf("%w: output %q of %q is already produced by %q", feature.ErrDuplicateFeature, out, name, owner)
		}
		s.owners[out] = name
	}
	s.loaded[name] = f
	ctxlog.FromContext(ctx).Debug("Loaded feature from store.", "feature", name, "path", file)
	return f, nil
}

func (s *Store) read(ctx context.Context, name, file string) (*feature.Feature, error) {
	src, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, err
	}

	var def *config.FeatureDefinition
	if path.Base(file) == jsonDescriptor {
		def, err = decodeJSON(src)
		if err == nil && def.Name != name {
			err = fmt.Errorf("%s names feature %q but its directory is %q", file, def.Name, name)
		}
	} else {
		def, err = decodeHCL(ctx, s.decoder, file, src, name)
	}
	if err != nil {
		return nil, err
	}

	f, err := s.bind(def)
	if err != nil {
		return nil, err
	}
	f.Source, err = s.routineSource(path.Dir(file))
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(f); err != nil {
		return nil, err
	}
	return f, nil
}

// bind turns a definition into a feature with its compiled routine.
func (s *Store) bind(def *config.FeatureDefinition) (*feature.Feature, error) {
	kind, err := feature.ParseKind(def.Kind)
	if err != nil {
		return nil, err
	}
	routine, ok := s.handlers.Get(def.Routine)
	if !ok {
		return nil, fmt.Errorf("routine %q is not registered", def.Routine)
	}
	return &feature.Feature{
		Name:        def.Name,
		Kind:        kind,
		Inputs:      slices.Clone(def.Inputs),
		Outputs:     slices.Clone(def.Outputs),
		DependsOn:   slices.Clone(def.DependsOn),
		Params:      slices.Clone(def.Params),
		Routine:     routine,
		Description: def.Description,
		Category:    feature.Category(def.Category),
		DType:       def.DType,
		Tags:        slices.Clone(def.Tags),
		Version:     def.Version,
	}, nil
}

// routineSource returns the text of the first *.go or *.src file in dir.
// The text is only ever scanned by the classifier.
func (s *Store) routineSource(dir string) (string, error) {
	entries, err := fs.ReadDir(s.fsys, dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), ".src") {
			src, err := fs.ReadFile(s.fsys, path.Join(dir, e.Name()))
			if err != nil {
				return "", err
			}
			return string(src), nil
		}
	}
	return "", nil
}
