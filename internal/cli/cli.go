package cli

import (
	"context"
	"io"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/vk/featuregrid/internal/app"
	"github.com/vk/featuregrid/internal/hcl"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// NewCommand builds the featuregrid command tree. Results go to outW and
// logs to logW.
func NewCommand(outW, logW io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "featuregrid",
		Usage:     "Compute derived features over tabular data from a catalog of declared transformations",
		Writer:    outW,
		ErrWriter: logW,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "features",
				Aliases: []string{"f"},
				Usage:   "Path to the feature store directory (the built-in features when empty)",
				Sources: cli.EnvVars("FEATUREGRID_FEATURES"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format. Options: 'text' or 'json'",
				Value:   "text",
				Sources: cli.EnvVars("FEATUREGRID_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Set the logging level. Options: 'debug', 'info', 'warn', 'error'",
				Value:   "info",
				Sources: cli.EnvVars("FEATUREGRID_LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			runCommand(outW, logW),
			planCommand(outW, logW),
			catalogCommand(outW, logW),
		},
	}
}

func runCommand(outW, logW io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the configured models against a dataset",
		Flags: []cli.Flag{
			configFlag(true),
			dataFlag(true),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Directory for saved stage outputs"},
			&cli.StringSliceFlag{Name: "model", Aliases: []string{"m"}, Usage: "Run only the named models (repeatable)"},
			&cli.IntFlag{Name: "healthcheck-port", Usage: "Port for the HTTP health check server. 0 is disabled"},
			&cli.BoolFlag{Name: "tracing", Usage: "Export traces over OTLP/HTTP", Sources: cli.EnvVars("FEATUREGRID_TRACING")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := newConfig(cmd, app.Config{
				ConfigPath:      cmd.String("config"),
				DataPath:        cmd.String("data"),
				OutputDir:       cmd.String("out"),
				Models:          cmd.StringSlice("model"),
				HealthcheckPort: int(cmd.Int("healthcheck-port")),
				Tracing:         cmd.Bool("tracing"),
			})
			if err != nil {
				return err
			}
			return app.NewApp(outW, logW, cfg, hcl.NewLoader()).Run(ctx)
		},
	}
}

func planCommand(outW, logW io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Resolve and validate outputs without running any routine",
		ArgsUsage: "[OUTPUT...]",
		Flags: []cli.Flag{
			configFlag(false),
			dataFlag(false),
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Plan the outputs and configuration of a model"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.String("model") != "" && cmd.String("config") == "" {
				return &ExitError{Code: 2, Message: "--model requires --config"}
			}
			cfg, err := newConfig(cmd, app.Config{
				ConfigPath: cmd.String("config"),
				DataPath:   cmd.String("data"),
			})
			if err != nil {
				return err
			}
			return app.NewApp(outW, logW, cfg, hcl.NewLoader()).Plan(ctx, cmd.String("model"), cmd.Args().Slice())
		},
	}
}

func catalogCommand(outW, logW io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "catalog",
		Aliases: []string{"ls"},
		Usage:   "List the available features",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Match names, descriptions and tags"},
			&cli.StringFlag{Name: "tag", Usage: "Only features carrying this tag"},
			&cli.StringFlag{Name: "category", Usage: "Only features of this category"},
			&cli.BoolFlag{Name: "stats", Usage: "Print catalog statistics as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := newConfig(cmd, app.Config{})
			if err != nil {
				return err
			}
			return app.NewApp(outW, logW, cfg, hcl.NewLoader()).Catalog(ctx, app.CatalogQuery{
				Search:   cmd.String("search"),
				Tag:      cmd.String("tag"),
				Category: cmd.String("category"),
				Stats:    cmd.Bool("stats"),
			})
		},
	}
}

func configFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Path to a model .hcl file or a directory of them",
		Required: required,
		Sources:  cli.EnvVars("FEATUREGRID_CONFIG"),
	}
}

func dataFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Aliases:  []string{"d"},
		Usage:    "Path to the input CSV dataset",
		Required: required,
	}
}

// newConfig completes base with the global flags and validates it. Invalid
// values are usage errors.
func newConfig(cmd *cli.Command, base app.Config) (*app.Config, error) {
	base.FeaturesPath = cmd.String("features")
	base.LogFormat = strings.ToLower(cmd.String("log-format"))
	base.LogLevel = strings.ToLower(cmd.String("log-level"))
	cfg, err := app.NewConfig(base)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}
