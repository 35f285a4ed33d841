package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toka-os/toka-core/internal/auth"
	"github.com/toka-os/toka-core/internal/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kernel, bus, and storage backend behind a thin HTTP surface",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	secret := viper.GetString("auth-secret")
	if secret == "" {
		return fmt.Errorf("auth-secret is required (flag --auth-secret or env TOKAD_AUTH_SECRET)")
	}
	validator, err := auth.NewHS256Validator([]byte(secret), log)
	if err != nil {
		return fmt.Errorf("build capability validator: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := newPrometheusMetrics(registry)

	cfg := runtime.Config{
		Storage:     runtime.StorageKind(viper.GetString("storage")),
		Path:        viper.GetString("path"),
		BusCapacity: viper.GetInt("bus-capacity"),
		DrainRetry: runtime.DrainRetryConfig{
			Attempts: viper.GetInt("drain-attempts"),
			BaseMS:   viper.GetInt("drain-base-ms"),
			MaxMS:    viper.GetInt("drain-max-ms"),
		},
		Metrics: metrics,
	}

	rt, err := runtime.New(cfg, validator, log)
	if err != nil {
		return fmt.Errorf("construct runtime: %w", err)
	}

	gin.SetMode(ginModeFromEnv())
	router := gin.Default()
	router.GET("/healthz", healthHandler(rt))
	router.POST("/v1/messages", submitHandler(rt))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	addr := viper.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: router}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", addr), slog.String("storage", string(cfg.Storage)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-rt.Fatal():
		log.Error("runtime reported a fatal error, shutting down", slog.Any("error", rt.FatalError()))
	case sig := <-sigCh:
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown did not complete cleanly", slog.Any("error", err))
	}
	if err := rt.Shutdown(); err != nil {
		log.Warn("runtime shutdown did not complete cleanly", slog.Any("error", err))
	}
	return nil
}

func ginModeFromEnv() string {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		return mode
	}
	return gin.ReleaseMode
}
