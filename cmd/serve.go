package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"mediavault/internal/handler"
)

var withWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP API, gRPC health and scheduled maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.serve(ctx, withWorker)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume the job queue in this process")
	rootCmd.AddCommand(serveCmd)
}

func (a *app) serve(ctx context.Context, runWorker bool) error {
	pendingHandler := handler.NewPendingHandler(a.pending, a.promoter, a.log)
	assetHandler := handler.NewAssetHandler(a.access, a.assets, a.log)

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler: handler.NewRouter(a.log, pendingHandler, assetHandler, a.cfg.Server.MetricsPath),
	}

	// Создаем gRPC сервер со службой health
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	scheduler, err := a.scheduler(ctx)
	if err != nil {
		return err
	}
	scheduler.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		a.log.Info("Starting gRPC server", "port", a.cfg.Server.GRPCPort)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		a.log.Info("Starting HTTP server", "port", a.cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	if runWorker {
		g.Go(func() error {
			return a.newWorker().Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("Shutting down servers...")
		healthServer.Shutdown()

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		<-scheduler.Stop().Done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("HTTP server forced to shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("Server exited properly")
	return nil
}
