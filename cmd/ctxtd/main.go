// Package main wires together the conversion service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/api"
	"github.com/ctxthelp/ctxt-api/internal/auth"
	"github.com/ctxthelp/ctxt-api/internal/billing"
	"github.com/ctxthelp/ctxt-api/internal/botdetect"
	"github.com/ctxthelp/ctxt-api/internal/clock/system"
	"github.com/ctxthelp/ctxt-api/internal/config"
	"github.com/ctxthelp/ctxt-api/internal/convert"
	"github.com/ctxthelp/ctxt-api/internal/core"
	"github.com/ctxthelp/ctxt-api/internal/hash/sha256"
	"github.com/ctxthelp/ctxt-api/internal/id/uuid"
	"github.com/ctxthelp/ctxt-api/internal/logging"
	"github.com/ctxthelp/ctxt-api/internal/metrics"
	"github.com/ctxthelp/ctxt-api/internal/policy/ratelimit"
	"github.com/ctxthelp/ctxt-api/internal/policy/tier"
	"github.com/ctxthelp/ctxt-api/internal/reader"
	"github.com/ctxthelp/ctxt-api/internal/stack"
	"github.com/ctxthelp/ctxt-api/internal/storage/postgres"
	"github.com/ctxthelp/ctxt-api/internal/tokenizer"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	accounts, err := postgres.NewAccountStore(pool)
	if err != nil {
		logger.Fatal("account store init failed", zap.Error(err))
	}
	conversions, err := postgres.NewConversionStore(pool)
	if err != nil {
		logger.Fatal("conversion store init failed", zap.Error(err))
	}
	stacks, err := postgres.NewStackStore(pool)
	if err != nil {
		logger.Fatal("stack store init failed", zap.Error(err))
	}

	clock := system.New()
	idGen := uuid.NewGenerator()
	hasher := sha256.New()

	counter, err := tokenizer.New(cfg.Tokenizer.Encoding, logger.Named("tokenizer"))
	if err != nil {
		logger.Warn("tokenizer init failed, falling back to estimates", zap.Error(err))
		counter = tokenizer.NewFallback(logger.Named("tokenizer"))
	}

	extractor := reader.New(reader.Config{
		BaseURL:    cfg.Reader.BaseURL,
		Timeout:    cfg.ReaderTimeout(),
		MaxRetries: cfg.Reader.MaxRetries,
	}, logger.Named("reader"))

	policy := tier.NewPolicy(cfg.Tiers)
	limiter := ratelimit.New(policy, conversions, clock, logger.Named("ratelimit"))
	anonymous := ratelimit.NewAnonymous(policy.DailyLimit(core.TierFree))

	pipeline := convert.NewPipeline(
		conversions,
		accounts,
		extractor,
		counter,
		idGen,
		hasher,
		clock,
		logger.Named("convert"),
	)
	stackSvc := stack.NewService(stacks, idGen, clock, logger.Named("stack"))
	billingProc := billing.NewProcessor(accounts, cfg.Billing.WebhookSecret, logger.Named("billing"))
	authn := auth.New(accounts, cfg.Auth.JWTSecret, clock, logger.Named("auth"))
	detector := botdetect.New(logger.Named("botdetect"))

	apiServer := api.NewServer(api.Deps{
		Pipeline:    pipeline,
		Conversions: conversions,
		Stacks:      stackSvc,
		Limiter:     limiter,
		Anonymous:   anonymous,
		Policy:      policy,
		Detector:    detector,
		Billing:     billingProc,
		Auth:        authn,
		Clock:       clock,
		Ready:       pool.Ping,
	}, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
