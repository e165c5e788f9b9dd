package main

import (
	"time"

	"github.com/go-via/testbench/internal/config"
	"github.com/go-via/testbench/internal/posts"
	"github.com/go-via/testbench/internal/showcase"
	"github.com/go-via/testbench/via"
	"github.com/go-via/testbench/via/plugins/picocss"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	addr           string
	logLevel       string
	items          []string
	endpoint       string
	decrementDelay time.Duration
}

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return (&serveFlags{}).command(load)
}

func (f *serveFlags) command(load func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the showcase view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			app := newShowcase(cfg)
			return runUntilSignal(cmd.Context(), app.Start, app.Shutdown)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default from config, :3000)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "error, warn, info or debug")
	cmd.Flags().StringArrayVar(&f.items, "item", nil, "item to list; repeat for more")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "post endpoint")
	cmd.Flags().DurationVar(&f.decrementDelay, "decrement-delay", 0, "delay before a decrement lands")
	return cmd
}

// apply copies the flags the user set over cfg.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Serve.Addr = f.addr
	}
	if flags.Changed("log-level") {
		cfg.Serve.LogLevel = f.logLevel
	}
	if flags.Changed("item") {
		cfg.Serve.Items = f.items
	}
	if flags.Changed("endpoint") {
		cfg.Posts.Endpoint = f.endpoint
	}
	if flags.Changed("decrement-delay") {
		cfg.Serve.DecrementDelay.Duration = f.decrementDelay
	}
}

func sessionTTLSeconds(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return max(1, int(d.Seconds()))
}

func newShowcase(cfg config.Config) *via.V {
	return showcase.New(
		showcase.Options{
			Items:          cfg.Serve.Items,
			Fetcher:        posts.NewClient(cfg.Posts.Endpoint, cfg.Posts.Timeout.Duration),
			DecrementDelay: cfg.Serve.DecrementDelay.Duration,
		},
		via.Options{
			ServerAddress: cfg.Serve.Addr,
			LogLvl:        via.ParseLogLevel(cfg.Serve.LogLevel),
			DocumentTitle: cfg.Serve.Title,
			SessionTTL:    sessionTTLSeconds(cfg.Serve.SessionTTL.Duration),
			Plugins:       []via.Plugin{picocss.New()},
		},
	)
}
