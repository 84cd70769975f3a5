// Package server implements the teleworker gRPC service.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/relaygrid/teleworker/auth"
	"github.com/relaygrid/teleworker/job"
	"github.com/relaygrid/teleworker/output"
	pb "github.com/relaygrid/teleworker/proto/teleworker/v1"
	"github.com/relaygrid/teleworker/worker"
)

// Server implements the TeleWorker gRPC service.
type Server struct {
	pb.UnimplementedTeleWorkerServer
	worker *worker.Worker
}

// New creates a Server backed by the given Worker.
func New(w *worker.Worker) *Server {
	return &Server{worker: w}
}

// authorize checks that the caller is allowed to access the given job. Admins
// may access any job. Regular users may only access their own jobs.
// The caller's identity must already be in the context (set by the auth interceptor).
func (s *Server) authorize(ctx context.Context, jobID string) (auth.Identity, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return auth.Identity{}, err
	}

	if id.IsAdmin() {
		return id, nil
	}

	owner, err := s.worker.GetJobOwner(jobID)
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			return auth.Identity{}, status.Error(codes.NotFound, "job not found")
		}
		return auth.Identity{}, status.Errorf(codes.Internal, "failed to check job owner: %v", err)
	}

	if owner.Username != id.Username {
		// We return a NotFound here because if we returned PermissionDenied,
		// this could leak which job IDs are valid and owned by another user.
		// Job IDs currently are UUIDs, which are 128 bits. It would be
		// impractical to brute force a 128 bit key (although only 122 bits are
		// random), however, this is a defense in depth. Suppose if the key type
		// changes from a UUID to something with fewer bits of entropy?
		return auth.Identity{}, status.Error(codes.NotFound, "job not found")
	}
	return id, nil
}

// StartJob starts a new job and returns its ID.
func (s *Server) StartJob(ctx context.Context, req *pb.StartJobRequest) (*pb.StartJobResponse, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	if req.GetCommand() == "" {
		return nil, status.Error(codes.InvalidArgument, "command must not be empty")
	}

	// TODO: We can support other job types, such as Docker by extending the
	// protobuf to include which job type we want to launch. Currently, we will
	// hard-code JobTypeLocal for simplicity.
	jobID, err := s.worker.StartJob(job.JobTypeLocal, req.GetCommand(), req.GetArgs(), id)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to start job: %v", err)
	}

	slog.Info(
		"started job",
		"jobID", jobID,
		"command", req.GetCommand(),
		"args", req.GetArgs(),
		"user", id.Username,
	)

	return &pb.StartJobResponse{
		JobId: jobID,
	}, nil
}

// GetJobStatus returns the current status and exit code for a job.
func (s *Server) GetJobStatus(ctx context.Context, req *pb.GetJobStatusRequest) (*pb.GetJobStatusResponse, error) {
	if _, err := s.authorize(ctx, req.GetJobId()); err != nil {
		return nil, err
	}

	result, err := s.worker.GetJobStatus(req.GetJobId())
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			return nil, status.Error(codes.NotFound, "job not found")
		}
		return nil, status.Errorf(codes.Internal, "failed to get job status: %v", err)
	}

	resp := &pb.GetJobStatusResponse{
		JobId:   req.GetJobId(),
		Status:  mapJobStatus(result.Status),
		Reason:  result.Reason,
		HostPid: result.HostPID,
	}

	if result.ExitCode != nil {
		resp.ExitCode = int32(*result.ExitCode)
		resp.ExitCodeSet = true
	}

	return resp, nil
}

// StopJob terminates a running job.
func (s *Server) StopJob(ctx context.Context, req *pb.StopJobRequest) (*pb.StopJobResponse, error) {
	if _, err := s.authorize(ctx, req.GetJobId()); err != nil {
		return nil, err
	}

	// Stopping a job that has already reached a terminal state is a no-op
	// success: both a retry and a race against the job finishing on its own
	// must succeed rather than surface an error to the caller.
	err := s.worker.StopJob(req.GetJobId())
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			return nil, status.Error(codes.NotFound, "job not found")
		}
		return nil, status.Errorf(codes.Internal, "failed to stop job: %v", err)
	}

	return &pb.StopJobResponse{}, nil
}

// StreamOutput streams a job's stdout and stderr to the client as separate
// chunk fields, so the caller never has to guess which stream a byte came
// from the way a combined stream would force it to.
func (s *Server) StreamOutput(req *pb.StreamOutputRequest, stream grpc.ServerStreamingServer[pb.StreamOutputResponse]) error {
	if _, err := s.authorize(stream.Context(), req.GetJobId()); err != nil {
		return err
	}

	stdoutSub, stderrSub, err := s.worker.StreamOutput(req.GetJobId())
	if err != nil {
		if errors.Is(err, worker.ErrJobNotFound) {
			return status.Error(codes.NotFound, "job not found")
		}
		return status.Errorf(codes.Internal, "failed to stream output: %v", err)
	}
	// Ensure we close both subscribers when either the context is canceled
	// or we exit this function.
	closeSubs := sync.OnceFunc(func() {
		stdoutSub.Close()
		stderrSub.Close()
	})
	stop := context.AfterFunc(stream.Context(), closeSubs)
	defer stop()
	defer closeSubs()

	type chunk struct {
		stdout bool
		data   []byte
		err    error
	}
	chunks := make(chan chunk)
	var wg sync.WaitGroup
	pump := func(sub output.Subscriber, isStdout bool) {
		defer wg.Done()
		buf := make([]byte, 4096) // For simplicity, hard code buffer size.
		for {
			n, err := sub.Read(stream.Context(), buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				chunks <- chunk{stdout: isStdout, data: data}
			}
			if err != nil {
				chunks <- chunk{stdout: isStdout, err: err}
				return
			}
		}
	}
	wg.Add(2)
	go pump(stdoutSub, true)
	go pump(stderrSub, false)
	go func() {
		wg.Wait()
		close(chunks)
	}()

	stdoutDone, stderrDone := false, false
	for c := range chunks {
		if len(c.data) > 0 {
			resp := &pb.StreamOutputResponse{}
			if c.stdout {
				resp.StdoutChunk = c.data
			} else {
				resp.StderrChunk = c.data
			}
			if sendErr := stream.Send(resp); sendErr != nil {
				return sendErr
			}
		}
		if c.err != nil {
			if c.stdout {
				stdoutDone = true
			} else {
				stderrDone = true
			}
			if !errors.Is(c.err, io.EOF) && !errors.Is(c.err, io.ErrClosedPipe) && !errors.Is(c.err, context.Canceled) {
				return c.err
			}
			if stdoutDone && stderrDone {
				return nil
			}
		}
	}
	return nil
}

// SweepJobs reclaims finished jobs older than the requested cutoff. Only
// admins may call this: it is an operational cleanup, not something a
// regular client needs to drive.
func (s *Server) SweepJobs(ctx context.Context, req *pb.SweepJobsRequest) (*pb.SweepJobsResponse, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !id.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, "only admins may sweep jobs")
	}

	removed := s.worker.Sweep(time.Duration(req.GetOlderThanSeconds()) * time.Second)
	return &pb.SweepJobsResponse{RemovedCount: int32(removed)}, nil
}

func mapJobStatus(s job.Status) pb.JobStatus {
	switch s {
	case job.StatusSubmitted:
		return pb.JobStatus_JOB_STATUS_SUBMITTED
	case job.StatusRunning:
		return pb.JobStatus_JOB_STATUS_RUNNING
	case job.StatusSuccess:
		return pb.JobStatus_JOB_STATUS_SUCCESS
	case job.StatusFailed:
		return pb.JobStatus_JOB_STATUS_FAILED
	case job.StatusKilled:
		return pb.JobStatus_JOB_STATUS_KILLED
	default:
		return pb.JobStatus_JOB_STATUS_UNSPECIFIED
	}
}
