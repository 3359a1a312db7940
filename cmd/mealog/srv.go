package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mealog/internal/auth"
	"mealog/internal/config"
	"mealog/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the mealog API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer rt.Close()

			if cfg.SessionSecret == "" {
				logger.Warn("session_secret is not set; sessions will not survive a restart")
			}
			sessions, err := auth.NewSessions(cfg.SessionSecret, cfg.SecureCookies)
			if err != nil {
				return err
			}
			if count, err := rt.store.CountUsers(cmd.Context()); err == nil && count == 0 {
				if cfg.AllowRegister {
					logger.Warn("no users yet; the first account registered becomes admin")
				} else {
					logger.Warn("no users yet and registration is closed; create an admin with: mealog user add <username> --admin --password-stdin")
				}
			}

			srv, err := server.New(server.Config{
				Addr:               addr,
				Store:              rt.store,
				Blobs:              rt.blobs,
				Ingest:             rt.ingest,
				Paths:              rt.paths,
				Sessions:           sessions,
				Metrics:            rt.metrics,
				MetricsHandler:     promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}),
				RegistrationClosed: !cfg.AllowRegister,
				Logger:             logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}
