// cmd/mockissuer/main.go
// mockissuer serves the development credential issuer: /auth/login, /auth/register,
// /auth/refresh, /auth/forgot, /auth/logout and a protected /me under --base-path.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/mockissuer"
	"github.com/deploymenttheory/go-api-http-session/version"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		addr      string
		basePath  string
		tokenTTL  time.Duration
		rateLimit float64
		burst     int
		logLevel  string
	)

	flagSet := pflag.NewFlagSet("mockissuer", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", ":3000", "listen address")
	flagSet.StringVar(&basePath, "base-path", "/api", "path prefix for every route")
	flagSet.DurationVar(&tokenTTL, "token-ttl", mockissuer.DefaultTokenTTL, "lifetime of issued access credentials")
	flagSet.Float64Var(&rateLimit, "rate-limit", 0, "login and forgot requests per second (0 disables the limit)")
	flagSet.IntVar(&burst, "burst", 5, "rate limit burst")
	flagSet.StringVar(&logLevel, "log-level", "LogLevelInfo", "log level, e.g. LogLevelDebug")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := logger.BuildLogger(logger.Options{
		Level:    logger.ParseLogLevelFromString(logLevel),
		Encoding: logger.LogOutputConsole,
		InitialFields: map[string]interface{}{
			"application": "mockissuer",
			"version":     version.GetVersion(),
		},
	})

	opts := []mockissuer.Option{
		mockissuer.WithTokenTTL(tokenTTL),
		mockissuer.WithLogger(log),
	}
	if rateLimit > 0 {
		opts = append(opts, mockissuer.WithRateLimit(rate.Limit(rateLimit), burst))
	}

	issuer, err := mockissuer.New(opts...)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              addr,
		Handler:           issuer.Handler(basePath),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Mock issuer listening",
			zap.String("addr", addr),
			zap.String("basePath", basePath),
			zap.String("testUser", mockissuer.TestUserEmail),
		)
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

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
