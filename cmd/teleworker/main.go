// Program teleworker manages jobs sent by the telerun client.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/relaygrid/teleworker/auth"
	"github.com/relaygrid/teleworker/config"
	"github.com/relaygrid/teleworker/logging"
	pb "github.com/relaygrid/teleworker/proto/teleworker/v1"
	"github.com/relaygrid/teleworker/resources"
	"github.com/relaygrid/teleworker/server"
	"github.com/relaygrid/teleworker/worker"
)

func main() {
	logging.Init()

	var cfg config.Server

	rootCmd := &cobra.Command{
		Use:   "teleworker",
		Short: "teleworker gRPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), &cfg)
		},
	}

	cfg.Flags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Server) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cgroupMgr, err := resources.NewManager(cfg.CgroupParent, cfg.Limits)
	if err != nil {
		return fmt.Errorf("failed to configure cgroups (requires root): %w", err)
	}

	w := worker.New(worker.Options{
		CgroupMgr: *cgroupMgr,
		RootfsDir: cfg.RootfsDir,
		InitPath:  cfg.InitPath,
	})
	srv := server.New(w)

	listen, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	tlsConf, err := loadServerTLS(cfg.TLS)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(
		grpc.Creds(credentials.NewTLS(tlsConf)),
		grpc.UnaryInterceptor(auth.UnaryInterceptor),
		grpc.StreamInterceptor(auth.StreamInterceptor),
	)
	pb.RegisterTeleWorkerServer(grpcServer, srv)

	stopReaper := startReaper(w, cfg.ReapAfter, cfg.ReapInterval)
	defer stopReaper()

	// Handle shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info(
			"received signal, shutting down",
			"signal", sig,
		)
		stopReaper()
		w.Shutdown()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.ShutdownTimeout):
			slog.Warn("graceful shutdown timed out, forcing stop", "timeout", cfg.ShutdownTimeout)
			grpcServer.Stop()
		}
	}()

	slog.Info(
		"server listening",
		"addr", cfg.Addr,
	)
	if err := grpcServer.Serve(listen); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	slog.Info("server finished")
	return nil
}

// startReaper runs w.Sweep(reapAfter) once per interval until the returned
// stop function is called. It is a no-op if reapAfter is non-positive.
func startReaper(w *worker.Worker, reapAfter, interval time.Duration) (stop func()) {
	if reapAfter <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := w.Sweep(reapAfter); n > 0 {
					slog.Info("swept finished jobs", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func loadServerTLS(tlsCfg config.TLS) (*tls.Config, error) {
	caCert, err := os.ReadFile(tlsCfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	conf, err := auth.ServerTLSConfig(caCert, cert)
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}
	return conf, nil
}
