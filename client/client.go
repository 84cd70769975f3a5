// Package client provides a gRPC client for the teleworker service.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/relaygrid/teleworker/job"
	pb "github.com/relaygrid/teleworker/proto/teleworker/v1"
)

// Client wraps a gRPC connection to the teleworker service.
type Client struct {
	conn   *grpc.ClientConn
	client pb.TeleWorkerClient
}

// New creates a new Client connected to the teleworker gRPC server at address
// using the provided TLS configuration for mutual TLS authentication.
func New(address string, tlsConf *tls.Config) (*Client, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(credentials.NewTLS(tlsConf)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &Client{
		conn:   conn,
		client: pb.NewTeleWorkerClient(conn),
	}, nil
}

// Close the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StartJob starts a job on the teleworker server and returns the job ID.
func (c *Client) StartJob(ctx context.Context, command string, args []string) (string, error) {
	resp, err := c.client.StartJob(ctx, &pb.StartJobRequest{
		Command: command,
		Args:    args,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start job: %w", err)
	}

	return resp.GetJobId(), nil
}

// GetJobStatus returns the job's status, optional exit code, and host PID.
// The exit code is nil while the job is still running or if the isolation
// helper failed before the user command ran; Reason explains the latter
// case. hostPID is 0 if the job has not been spawned yet.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (status job.Status, exitCode *int32, hostPID int64, err error) {
	resp, err := c.client.GetJobStatus(ctx, &pb.GetJobStatusRequest{
		JobId: jobID,
	})
	if err != nil {
		return job.StatusUnspecified, nil, 0, fmt.Errorf("failed to get job status: %w", err)
	}

	if resp.GetExitCodeSet() {
		ec := resp.GetExitCode()
		exitCode = &ec
	}
	return mapStatus(resp.GetStatus()), exitCode, resp.GetHostPid(), nil
}

// JobFailureReason returns the reason a StatusFailed job never ran the user
// command (e.g. isolation setup failure), or "" if the job ran normally.
func (c *Client) JobFailureReason(ctx context.Context, jobID string) (string, error) {
	resp, err := c.client.GetJobStatus(ctx, &pb.GetJobStatusRequest{JobId: jobID})
	if err != nil {
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return resp.GetReason(), nil
}

func mapStatus(s pb.JobStatus) job.Status {
	switch s {
	case pb.JobStatus_JOB_STATUS_SUBMITTED:
		return job.StatusSubmitted
	case pb.JobStatus_JOB_STATUS_RUNNING:
		return job.StatusRunning
	case pb.JobStatus_JOB_STATUS_SUCCESS:
		return job.StatusSuccess
	case pb.JobStatus_JOB_STATUS_FAILED:
		return job.StatusFailed
	case pb.JobStatus_JOB_STATUS_KILLED:
		return job.StatusKilled
	default:
		return job.StatusUnspecified
	}
}

// StreamOutput streams a job's stdout to stdout and stderr to stderr.
// Passing the same writer for both interleaves them in arrival order, which
// is how a terminal would show them. It returns nil on EOF (job finished),
// or an error on failure.
func (c *Client) StreamOutput(ctx context.Context, jobID string, stdout, stderr io.Writer) error {
	stream, err := c.client.StreamOutput(ctx, &pb.StreamOutputRequest{
		JobId: jobID,
	})
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send: %w", err)
	}
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream recv error: %w", err)
		}
		if chunk := resp.GetStdoutChunk(); len(chunk) > 0 {
			if _, err := stdout.Write(chunk); err != nil {
				return fmt.Errorf("write stdout: %w", err)
			}
		}
		if chunk := resp.GetStderrChunk(); len(chunk) > 0 {
			if _, err := stderr.Write(chunk); err != nil {
				return fmt.Errorf("write stderr: %w", err)
			}
		}
	}
}

// StopJob stops a running job.
func (c *Client) StopJob(ctx context.Context, jobID string) error {
	_, err := c.client.StopJob(ctx, &pb.StopJobRequest{
		JobId: jobID,
	})
	if err != nil {
		return fmt.Errorf("failed to stop job: %w", err)
	}
	return nil
}

// SweepJobs reclaims finished jobs older than olderThan. The caller must be
// authenticated as an admin identity.
func (c *Client) SweepJobs(ctx context.Context, olderThan time.Duration) (int32, error) {
	resp, err := c.client.SweepJobs(ctx, &pb.SweepJobsRequest{
		OlderThanSeconds: int64(olderThan.Seconds()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep jobs: %w", err)
	}
	return resp.GetRemovedCount(), nil
}
