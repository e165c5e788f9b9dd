package main

import (
	"net/http"
	"time"

	"github.com/go-via/testbench/internal/config"
	"github.com/go-via/testbench/internal/postserver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPostServerCmd(load func() (config.Config, error)) *cobra.Command {
	var addr, db string
	cmd := &cobra.Command{
		Use:   "postserver",
		Short: "Serve random posts from a SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.PostServer.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.PostServer.DB = db
			}

			store, err := postserver.OpenSQLite(cmd.Context(), cfg.PostServer.DB)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := newLogger()
			srv := &http.Server{
				Addr:              cfg.PostServer.Addr,
				Handler:           postserver.Handler(store, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info().Str("addr", srv.Addr).Str("db", cfg.PostServer.DB).Msg("post server started")
			return runUntilSignal(cmd.Context(), func() error {
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}, srv.Shutdown)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :5000)")
	cmd.Flags().StringVar(&db, "db", "", "SQLite database path; \":memory:\" for a throwaway store")
	return cmd
}
