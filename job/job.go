// Package job defines job types and provides a factory for constructing them.
package job

import (
	"fmt"

	"github.com/relaygrid/teleworker/output"
	"github.com/relaygrid/teleworker/resources"
)

// JobStatus represents the current state of a job.
type JobStatus int

// Status is a shorthand alias for JobStatus used throughout the rest of the
// codebase.
type Status = JobStatus

const (
	// Job statuses. A job should never have StatusUnspecified. This would
	// indicate a bug. This was included as the zero value so we can have a
	// mechanism to detect a bug in setting the status, since a status of 0
	// would indicate that an unexpected bug happened.
	StatusUnspecified JobStatus = iota
	StatusSubmitted
	StatusRunning
	StatusSuccess
	StatusFailed
	StatusKilled
)

// JobType identifies the kind of job to run.
type JobType int

const (
	// Currently only local jobs are accepted. This can be extended later to
	// allow launching Docker jobs.
	JobTypeLocal  JobType = 1
	JobTypeDocker JobType = 2
)

// StatusResult holds the status, optional exit code, optional failure
// reason, and host PID for a job. Reason is only set when Status is
// StatusFailed and the failure happened before the user command ran
// (namespace, mount, or cgroup setup in the isolation helper), as opposed to
// the user command itself exiting non-zero. HostPID is 0 until the job has
// been spawned.
type StatusResult struct {
	Status   JobStatus
	ExitCode *int
	Reason   string
	HostPID  int64
}

// Job is the interface that all job types must implement.
type Job interface {
	ID() string
	Start() error
	Status() StatusResult
	Stop() error
	Wait()
	// Output returns the job's stdout and stderr logs. Both are non-nil as
	// soon as the job is constructed, even before Start is called, so a
	// caller may subscribe before the job starts producing output.
	Output() (stdout, stderr *output.Log)
}

// Options configures job construction.
type Options struct {
	NoCleanup bool              // If true, skip cgroup cleanup when the job exits. This is used for testing purposes.
	Cgroup    *resources.Cgroup // Resource limits for the job. nil if running without cgroups.

	// RootfsDir and InitPath together enable full namespace isolation
	// (mount + network namespaces, pivot_root) via the isolation helper
	// binary. When RootfsDir is empty the job falls back to PID-namespace-only
	// isolation, sharing the host filesystem and network - the mode every
	// environment without a prepared rootfs image runs in.
	RootfsDir string
	InitPath  string
}

// NewJob will return a job type that implements the Job interface. Currently,
// only local jobs are supported, but this can be extended to support Docker
// jobs.
func NewJob(jobType JobType, id, command string, args []string, opts Options) (Job, error) {
	switch jobType {
	case JobTypeLocal:
		return &localJob{
			id:        id,
			command:   command,
			args:      args,
			status:    StatusSubmitted,
			cgroup:    opts.Cgroup,
			noCleanup: opts.NoCleanup,
			rootfsDir: opts.RootfsDir,
			initPath:  opts.InitPath,
			exited:    make(chan struct{}),
			stdout:    output.NewLog(),
			stderr:    output.NewLog(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown job type: %d", jobType)
	}
}
