package main

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
	"go.uber.org/zap"

	httpadapter "github.com/PabloGalante/ryokai-gateway/internal/adapters/http"
	"github.com/PabloGalante/ryokai-gateway/internal/app/archive"
	"github.com/PabloGalante/ryokai-gateway/internal/app/conversation"
	"github.com/PabloGalante/ryokai-gateway/internal/config"
	"github.com/PabloGalante/ryokai-gateway/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := observability.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer observability.Sync()
	log := observability.Logger()

	if cfg.Mode == config.ModeGCP {
		gin.SetMode(gin.ReleaseMode)
	}

	kv, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}()

	svc, err := conversation.Open(ctx, kv, newBackends(cfg), serviceOptions(cfg, true))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(svc, archive.NewService(svc, nil)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ryokai api listening", zap.String("addr", srv.Addr), zap.String("mode", string(cfg.Mode)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if _, err := svc.Stop(shutdownCtx); err != nil {
		log.Warn("stopping running chain", zap.Error(err))
	}
	svc.Wait()
	return nil
}
