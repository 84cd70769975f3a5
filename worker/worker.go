// Package worker manages job execution and lifecycle.
package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaygrid/teleworker/auth"
	"github.com/relaygrid/teleworker/job"
	"github.com/relaygrid/teleworker/output"
	"github.com/relaygrid/teleworker/resources"
)

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("job not found")

// jobEntry pairs a tracked job with bookkeeping the Worker needs but that
// doesn't belong on the Job interface itself.
type jobEntry struct {
	job       job.Job
	owner     auth.Identity
	createdAt time.Time
}

// Worker manages a set of running jobs.
type Worker struct {
	mu        sync.RWMutex
	jobs      map[string]*jobEntry // TODO: This would ideally be stored in a database. Using a Map for simplicity.
	cgroupMgr resources.Manager
	noCleanup bool
	rootfsDir string
	initPath  string
}

// Options configures a Worker.
type Options struct {
	CgroupMgr resources.Manager
	NoCleanup bool // If true, skip cgroup cleanup when jobs exit. Used for testing so we can inspect the cgroup directory after a job finishes.

	// RootfsDir and InitPath are forwarded to every job.Options this Worker
	// constructs; see job.Options for their meaning. Leaving both empty (the
	// default) runs jobs under PID-namespace-only isolation.
	RootfsDir string
	InitPath  string
}

// New creates a Worker.
func New(opts Options) *Worker {
	return &Worker{
		jobs:      make(map[string]*jobEntry),
		cgroupMgr: opts.CgroupMgr,
		noCleanup: opts.NoCleanup,
		rootfsDir: opts.RootfsDir,
		initPath:  opts.InitPath,
	}
}

// trackJob adds the job and its owner to the map so we can track it.
func (w *Worker) trackJob(jobID string, j job.Job, owner auth.Identity) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.jobs[jobID] = &jobEntry{job: j, owner: owner, createdAt: time.Now()}
}

// StartJob starts a command and returns the job ID.
func (w *Worker) StartJob(jobType job.JobType, command string, args []string, owner auth.Identity) (string, error) {
	jobID := uuid.New().String()

	cg, err := w.cgroupMgr.CreateCgroup(jobID)
	if err != nil {
		return "", fmt.Errorf("failed to create cgroup: %w", err)
	}

	j, err := job.NewJob(jobType, jobID, command, args, job.Options{
		NoCleanup: w.noCleanup,
		Cgroup:    cg,
		RootfsDir: w.rootfsDir,
		InitPath:  w.initPath,
	})
	if err != nil {
		cg.Cleanup()
		return "", err
	}

	if err := j.Start(); err != nil {
		return "", err
	}

	w.trackJob(jobID, j, owner)

	go j.Wait()

	return jobID, nil
}

// GetJobOwner returns the identity of the job's owner, or ErrJobNotFound.
func (w *Worker) GetJobOwner(jobID string) (auth.Identity, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entry, ok := w.jobs[jobID]
	if !ok {
		return auth.Identity{}, ErrJobNotFound
	}
	return entry.owner, nil
}

func (w *Worker) getJob(jobID string) (job.Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entry, ok := w.jobs[jobID]
	if !ok {
		return nil, false
	}
	return entry.job, true
}

// GetJobStatus returns the status and exit code for a job.
func (w *Worker) GetJobStatus(jobID string) (job.StatusResult, error) {
	j, ok := w.getJob(jobID)
	if !ok {
		return job.StatusResult{}, ErrJobNotFound
	}

	return j.Status(), nil
}

// StreamOutput returns independent subscribers for a job's stdout and
// stderr, so a caller can tell the two streams apart instead of receiving
// one interleaved byte stream.
func (w *Worker) StreamOutput(jobID string) (stdout, stderr output.Subscriber, err error) {
	j, ok := w.getJob(jobID)
	if !ok {
		return nil, nil, ErrJobNotFound
	}
	out, errLog := j.Output()
	return out.Subscribe(), errLog.Subscribe(), nil
}

// Shutdown stops all jobs and closes their output logs, unblocking any
// StreamOutput subscribers so that in-flight streaming RPCs can return
// cleanly during graceful shutdown.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, entry := range w.jobs {
		entry.job.Stop()
		stdout, stderr := entry.job.Output()
		stdout.Close()
		stderr.Close()
	}
}

// StopJob requests termination of a job. Stopping an already-terminal job
// is a no-op success. Returns ErrJobNotFound if the job does not exist.
func (w *Worker) StopJob(jobID string) error {
	j, ok := w.getJob(jobID)
	if !ok {
		return ErrJobNotFound
	}

	slog.Info(
		"stopping job",
		"jobID", jobID,
	)
	return j.Stop()
}

// Sweep removes terminal jobs created more than olderThan ago from the
// tracking table, freeing their entry. Jobs still Submitted or Running are
// never swept regardless of age. It returns the number of jobs removed.
//
// Sweep only runs when an admin calls it or the server is configured with a
// reap interval: jobs are ephemeral bookkeeping, not persisted state, so
// there is no correctness reason to reclaim them promptly. It exists for
// long-running servers that would otherwise grow the job table without
// bound. Whether a job's output is still being streamed is not checked.
func (w *Worker) Sweep(olderThan time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, entry := range w.jobs {
		st := entry.job.Status()
		if st.Status != job.StatusSuccess && st.Status != job.StatusFailed && st.Status != job.StatusKilled {
			continue
		}
		if entry.createdAt.After(cutoff) {
			continue
		}
		delete(w.jobs, id)
		removed++
	}
	return removed
}
