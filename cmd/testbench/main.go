// Command testbench serves the showcase view and the local post backend.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-via/testbench/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "testbench",
		Short:        "Server-driven view and the services it talks to",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")

	load := func() (config.Config, error) {
		return config.Load(configPath)
	}
	root.AddCommand(newServeCmd(load), newPostServerCmd(load))
	return root
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// runUntilSignal runs start until it fails or the process is interrupted,
// then calls stop with a bounded context.
func runUntilSignal(ctx context.Context, start func() error, stop func(context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := stop(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "shutdown")
	}
	return <-errc
}
