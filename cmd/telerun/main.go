// Program telerun is the CLI client to send jobs to teleworker.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaygrid/teleworker/auth"
	"github.com/relaygrid/teleworker/client"
	"github.com/relaygrid/teleworker/config"
	"github.com/relaygrid/teleworker/job"
	"github.com/relaygrid/teleworker/logging"
)

func main() {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Client

	rootCmd := &cobra.Command{
		Use:   "telerun",
		Short: "Run commands via telerun",
	}
	rootCmd.SetContext(ctx)

	cfg.Flags(rootCmd)

	startCmd := &cobra.Command{
		Use:   "start -- <command> [args...]",
		Short: "Run a command via telerun",
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmdStart(&cfg),
	}

	statusCmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Get the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdStatus(&cfg),
	}

	stopCmd := &cobra.Command{
		Use:   "stop <job_id>",
		Short: "Stop a running job",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdStop(&cfg),
	}

	logsCmd := &cobra.Command{
		Use:   "logs <job_id>",
		Short: "Stream the output of a job",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdLogs(&cfg),
	}

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative commands (require the admin role)",
	}

	var olderThan time.Duration
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reclaim finished jobs older than --older-than",
		RunE:  cmdSweep(&cfg, &olderThan),
	}
	sweepCmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "reclaim finished jobs that were started more than this long ago")
	adminCmd.AddCommand(sweepCmd)

	rootCmd.AddCommand(startCmd, statusCmd, stopCmd, logsCmd, adminCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// cmdStart sends the command to the gRPC server.
func cmdStart(cfg *config.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		slog.Info(
			"connecting",
			"addr", cfg.Addr,
		)

		teleClient, err := newTLSClient(cfg)
		if err != nil {
			return err
		}
		defer teleClient.Close()

		command := args[0]
		commandArgs := args[1:]
		slog.Info(
			"starting job",
			"command", command,
			"arguments", commandArgs,
		)

		jobID, err := teleClient.StartJob(cmd.Context(), command, commandArgs)
		if err != nil {
			return err
		}

		slog.Info(
			"job started",
			"job_id", jobID,
		)

		output := struct {
			JobID string `json:"job_id"`
		}{JobID: jobID}

		b, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal job ID: %w", err)
		}
		fmt.Println(string(b))

		return nil
	}
}

func cmdStatus(cfg *config.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		teleClient, err := newTLSClient(cfg)
		if err != nil {
			return err
		}
		defer teleClient.Close()

		jobStatus, exitCode, hostPID, err := teleClient.GetJobStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		reason, err := teleClient.JobFailureReason(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		output := struct {
			JobID    string `json:"job_id"`
			Status   string `json:"status"`
			ExitCode *int32 `json:"exit_code,omitempty"`
			Reason   string `json:"reason,omitempty"`
			HostPID  int64  `json:"pid,omitempty"`
		}{
			JobID:    args[0],
			Status:   statusString(jobStatus),
			ExitCode: exitCode,
			Reason:   reason,
			HostPID:  hostPID,
		}

		b, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Println(string(b))

		return nil
	}
}

func cmdLogs(cfg *config.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		teleClient, err := newTLSClient(cfg)
		if err != nil {
			return err
		}
		defer teleClient.Close()

		return teleClient.StreamOutput(cmd.Context(), args[0], os.Stdout, os.Stderr)
	}
}

func cmdStop(cfg *config.Client) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		teleClient, err := newTLSClient(cfg)
		if err != nil {
			return err
		}
		defer teleClient.Close()

		return teleClient.StopJob(cmd.Context(), args[0])
	}
}

func cmdSweep(cfg *config.Client, olderThan *time.Duration) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		teleClient, err := newTLSClient(cfg)
		if err != nil {
			return err
		}
		defer teleClient.Close()

		removed, err := teleClient.SweepJobs(cmd.Context(), *olderThan)
		if err != nil {
			return err
		}

		slog.Info("swept finished jobs", "count", removed)
		return nil
	}
}

func newTLSClient(cfg *config.Client) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	caCert, err := os.ReadFile(cfg.TLS.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	tlsConf, err := auth.ClientTLSConfig(caCert, cert, "teleworker")
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}

	return client.New(cfg.Addr, tlsConf)
}

func statusString(s job.Status) string {
	switch s {
	case job.StatusUnspecified:
		return "unspecified"
	case job.StatusSubmitted:
		return "submitted"
	case job.StatusRunning:
		return "running"
	case job.StatusSuccess:
		return "success"
	case job.StatusFailed:
		return "failed"
	case job.StatusKilled:
		return "killed"
	default:
		return "unknown"
	}
}
