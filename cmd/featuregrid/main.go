package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/featuregrid/internal/cli"
)

// main is the entrypoint for the featuregrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line and turns startup panics into errors.
func run(outW, errW io.Writer, args []string) (err error) {
	// The app panics on critical config errors; recover so the caller can
	// print a clean message and choose the exit code.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	cmd := cli.NewCommand(outW, errW)
	return cmd.Run(context.Background(), append([]string{"featuregrid"}, args...))
}
