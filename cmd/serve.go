package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/api"
)

var (
	servePort int
	serveWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the directory search API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initImportEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if serveWarm {
			stats, err := env.Directory.Stats(ctx)
			if err != nil {
				return eris.Wrap(err, "warm directory")
			}
			zap.L().Info("directory warmed", zap.Int("total", stats.Total))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		handler := api.NewServer(env.Directory, env.Imports, api.Options{
			CORSOrigins: cfg.Server.CORSOrigins,
		}).Handler()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "load both sources before accepting requests")
	rootCmd.AddCommand(serveCmd)
}
