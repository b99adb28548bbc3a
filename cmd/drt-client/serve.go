package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/spf13/cobra"

	clienthttp "github.com/relieftoken/drt-client/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API used by the relief UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("drt-client",
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := clienthttp.NewHandler(a.session, a.mediator, a.history)
		router := clienthttp.NewRouter(handler, clienthttp.RouterConfig{
			AllowedOrigins: cfg.ClientSettings.AllowedOrigins,
			LoopbackOnly:   cfg.ClientSettings.LoopbackOnly,
		}, a.metrics)

		addr := net.JoinHostPort(cfg.ClientSettings.LocalHost, cfg.ClientSettings.Port)
		server := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Info("local API listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", "error", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("HTTP server gracefully stopped")
		}

		// Confirmation waits are not cancelled by the user; give them the same grace.
		if err = a.mediator.WaitAll(shutdownCtx); err != nil {
			log.Warn("pending transactions still unconfirmed at shutdown", "error", err)
		}
		return nil
	},
}
