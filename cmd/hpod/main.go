package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/internal/hpod"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
	"google.golang.org/grpc"
)

func main() {
	var grpcAddr string
	var httpAddr string
	var logLevel string
	var notifyBackoff string
	var notifyBaseMs int
	var notifyMaxMs int
	var notifyRetries int
	var notifySecret string

	flag.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&notifyBackoff, "notify-backoff", "exponential", "callback retry backoff (constant, exponential)")
	flag.IntVar(&notifyBaseMs, "notify-backoff-base-ms", 1000, "callback retry base delay in milliseconds")
	flag.IntVar(&notifyMaxMs, "notify-backoff-max-ms", 30000, "callback retry max delay in milliseconds")
	flag.IntVar(&notifyRetries, "notify-retries", 3, "callback retries after the first attempt")
	flag.StringVar(&notifySecret, "notify-secret", os.Getenv("HPO_CALLBACK_SECRET"), "default X-HPO-Callback-Secret value")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	backoff := utils.BackoffFromConfig(notifyBackoff, notifyBaseMs, notifyMaxMs)
	store := hpod.NewStudyStore()
	executor := hpod.NewStudyExecutor(store, hpod.NewNotifier(backoff, notifyRetries, notifySecret))

	// TODO: Configure gRPC server security (TLS, authentication) before exposing
	// this service outside a trusted network.
	grpcServer := grpc.NewServer()
	hpod.RegisterStudyServiceServer(grpcServer, hpod.NewStudyGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           hpod.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	executor.StopAll()
	executor.Wait()
	logger.Info("all studies stopped")
}
