package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exora/cart-session/internal/cartstub"
	"github.com/exora/cart-session/internal/config"
	"github.com/exora/cart-session/internal/health"
	"github.com/exora/cart-session/internal/metrics"
	"github.com/exora/cart-session/internal/telemetry"
	"github.com/joho/godotenv"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional
	_ = godotenv.Load()

	// Load config
	cfg := config.MustLoad()

	// Tracing setup
	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.OTel)
	if err != nil {
		slog.Error("❌ Error initializing tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	healthHandler, err := health.NewHealthHandler(cfg, nil)
	if err != nil {
		slog.Error("❌ Error initializing health checks", slog.String("error", err.Error()))
		os.Exit(1)
	}

	stub := cartstub.New(cartstub.Options{
		JWTKey:   []byte(cfg.Stub.JWTKey),
		TokenTTL: cfg.Stub.TokenTTL,
		Extra: map[string]http.Handler{
			"GET /metrics": metrics.Handler(),
			"GET /health":  healthHandler.Handler(),
		},
	})

	// a ready-made token so the CLI can be pointed at the stub right away
	devToken, err := stub.IssueToken("dev-user", "customer")
	if err != nil {
		slog.Error("❌ Error issuing development token", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("Stub catalog loaded", slog.String("env", cfg.Env), slog.String("version", health.Version), slog.String("dev_token", devToken))

	// Setup http server
	server := http.Server{
		Addr:              cfg.Stub.Addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("🚀 Stub cart API is starting...", slog.String("address", cfg.Stub.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("❌ Failed to start server", slog.String("error", err.Error()))
			done <- syscall.SIGTERM
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Error("⚠️ Failed to flush traces", slog.String("error", err.Error()))
	}
}
