// Command supportd serves the support API the live-chat widget talks to:
// customer sends and polls, restriction checks, channel status and the
// operator endpoints.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-livechat/docs"
	"github.com/tbourn/go-livechat/internal/config"
	httpapi "github.com/tbourn/go-livechat/internal/http"
	"github.com/tbourn/go-livechat/internal/observability"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/search"
	"github.com/tbourn/go-livechat/internal/sysutil"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// @title                       go-livechat support API
// @version                     1.0
// @description                 Reference support backend for the storefront live-chat widget.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// Environment wins over .env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogging(cfg.OTEL.ServiceName, cfg.LogLevel, cfg.LogPretty, os.Stderr)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("supportd stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, Version)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithin(shutdownTracing, 5*time.Second)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	var idx search.Index
	if cfg.AutoReply.Enabled {
		idx, err = search.NewIndexFromMarkdown(cfg.AutoReply.FAQPath)
		if err != nil {
			return err
		}
		log.Info().Str("path", cfg.AutoReply.FAQPath).Int("entries", idx.Len()).Msg("faq index loaded")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	svc := httpapi.NewSupportService(db, idx, cfg)
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("channel_status", string(svc.ChannelStatus())).
			Bool("auto_reply", cfg.AutoReply.Enabled).
			Str("version", Version).
			Msg("supportd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
