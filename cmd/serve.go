package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"ratfun/tripgraph/internal/api"
	"ratfun/tripgraph/internal/selector"
)

var (
	serveAddr   string
	serveWorlds []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve trip advice over HTTP",
	Long:  "Starts the advisory API. Worlds listed with --preload are built at startup; others are built on first request.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := newCache(d)
		for _, w := range serveWorlds {
			info, err := c.Rebuild(ctx, w)
			if err != nil {
				// Degraded: the world is retried on first request.
				logger.Warn("preload failed", "world", w, "error", err)
				continue
			}
			logger.Info("world preloaded", "world", w, "nodes", info.Nodes, "duration", info.Duration)
		}

		gin.SetMode(gin.ReleaseMode)
		handlers := api.NewHandlers(c, selector.New(c, logger), d, logger)
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(handlers),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("serving: %w", err)
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
	serveCmd.Flags().StringSliceVar(&serveWorlds, "preload", nil, "Worlds to build at startup")
	rootCmd.AddCommand(serveCmd)
}
