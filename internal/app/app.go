package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/vk/featuregrid/internal/classify"
	"github.com/vk/featuregrid/internal/config"
	"github.com/vk/featuregrid/internal/ctxlog"
	"github.com/vk/featuregrid/internal/featurestore"
	"github.com/vk/featuregrid/internal/handlers"
	"github.com/vk/featuregrid/modules/retail"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	handlers   *handlers.Handlers
	store      *featurestore.Store
	classifier classify.Classifier
	pipeline   *config.Pipeline
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Results are written to
// outW and logs to logW. Startup failures, such as unreadable configuration
// or a broken feature store, panic; the entrypoint recovers them.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader, modules ...handlers.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	h := handlers.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(h)
	}
	logger.Debug("All Go modules registered.", "modules", len(modules), "routines", h.Len())

	var features fs.FS = retail.Features()
	if appConfig.FeaturesPath != "" {
		features = os.DirFS(appConfig.FeaturesPath)
	}
	store, err := featurestore.New(features, h)
	if err != nil {
		panic(fmt.Errorf("failed to open feature store: %w", err))
	}
	logger.Debug("Feature store indexed.", "features", len(store.Names()))

	var pipeline *config.Pipeline
	if appConfig.ConfigPath != "" {
		pipeline, err = loader.Load(ctx, appConfig.ConfigPath)
		if err != nil {
			panic(fmt.Errorf("failed to load configuration: %w", err))
		}
		logger.Debug("Configuration loaded and translated into unified model.", "models", len(pipeline.Models))
	}

	// Undeclared kinds are inferred from manifest source text or, for
	// routines without one, from their Go source file.
	classifier := classify.Heuristic{Sources: classify.NewGoSource()}

	return &App{
		outW:       outW,
		logger:     logger,
		config:     appConfig,
		handlers:   h,
		store:      store,
		classifier: classifier,
		pipeline:   pipeline,
	}
}

// Handlers returns the registered routines. This is primarily for testing.
func (a *App) Handlers() *handlers.Handlers {
	return a.handlers
}

// Pipeline returns the loaded model configuration, or nil.
func (a *App) Pipeline() *config.Pipeline {
	return a.pipeline
}
