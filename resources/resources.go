// Package resources provides cgroup v2 resource controls for jobs.
package resources

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Limits describes the per-job resource caps written into a job's cgroup.
// CPUMax is the raw cpu.max value ("<quota> <period>", or "max <period>" for
// no cap). MemoryMax is the raw memory.max value in bytes ("max" for no
// cap). IOReadBPS/IOWriteBPS are per-second byte caps applied to the root
// filesystem's block device; zero means "don't cap that direction".
type Limits struct {
	CPUMax     string
	MemoryMax  string
	IOReadBPS  int64
	IOWriteBPS int64
}

// DefaultLimits returns the caps a job gets unless overridden: one CPU core,
// 100 MiB of memory, and 1 MiB/s of block IO in each direction.
func DefaultLimits() Limits {
	return Limits{
		CPUMax:     "100000 100000",
		MemoryMax:  strconv.Itoa(100 * 1024 * 1024),
		IOReadBPS:  1024 * 1024,
		IOWriteBPS: 1024 * 1024,
	}
}

// Manager creates and tracks cgroups under a single parent directory.
type Manager struct {
	parentPath string
	limits     Limits
}

// Cgroup represents a single job's cgroup.
type Cgroup struct {
	path string
	fd   int
}

// NewManager creates the parent cgroup directory under parentPath, enables
// the controllers jobs need, and returns a Manager that applies limits to
// every cgroup it subsequently creates. Returns an error if cgroup v2 is not
// available or permissions are insufficient.
func NewManager(parentPath string, limits Limits) (*Manager, error) {
	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err != nil {
		return nil, fmt.Errorf("cgroup v2 not available: %w", err)
	}

	// Kill any stale processes and remove the directory left over from a
	// previous run (e.g. if teleworker was killed with SIGKILL).
	cleanupStaleDir(parentPath)

	if err := os.MkdirAll(parentPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent cgroup: %w", err)
	}

	// We'll be enabling CPU, Memory, and Disk IO controllers.
	if err := os.WriteFile(
		filepath.Join(parentPath, "cgroup.subtree_control"),
		[]byte("+cpu +memory +io"),
		0644,
	); err != nil {
		return nil, fmt.Errorf("failed to enable cgroup controllers: %w", err)
	}

	return &Manager{parentPath: parentPath, limits: limits}, nil
}

// ParentPath returns the parent cgroup directory this Manager creates job
// cgroups under.
func (m *Manager) ParentPath() string {
	return m.parentPath
}

// Cleanup kills any processes still running under the parent cgroup and
// removes the whole parent directory tree. Intended for server shutdown, not
// for per-job teardown; use Cgroup.Cleanup for that.
func (m *Manager) Cleanup() {
	cleanupStaleDir(m.parentPath)
}

// CreateCgroup creates a cgroup for the given job ID, writes the Manager's
// resource limits, and opens a directory fd for use with SysProcAttr.CgroupFD.
func (m *Manager) CreateCgroup(jobID string) (*Cgroup, error) {
	path := filepath.Join(m.parentPath, jobID)
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cgroup directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, "cpu.max"), []byte(m.limits.CPUMax), 0644); err != nil {
		removeDir(path)
		return nil, fmt.Errorf("failed to set cpu.max: %w", err)
	}

	if err := os.WriteFile(filepath.Join(path, "memory.max"), []byte(m.limits.MemoryMax), 0644); err != nil {
		removeDir(path)
		return nil, fmt.Errorf("failed to set memory.max: %w", err)
	}

	// TODO: I tested setting disk io on my machine, but different disk
	// configurations may have different behavior. I'm going to make this a best
	// effort configuration in case this runs on a machine with a disk
	// configuration that I have not been able to test. If this fails, then I
	// will warn instead of failing to configure io cgroups.
	if m.limits.IOReadBPS > 0 || m.limits.IOWriteBPS > 0 {
		ioMax, err := rootIOMax(m.limits.IOReadBPS, m.limits.IOWriteBPS)
		if err != nil {
			slog.Warn("failed to get io.max config", "error", err)
		} else if err := os.WriteFile(filepath.Join(path, "io.max"), []byte(ioMax), 0644); err != nil {
			// Setting io.max with an incorrect major:minor configuration results in
			// an error. While this works on my machine, I have not been able to
			// test it on other disk configurations (e.g. RAID). I will not make
			// this a failure condition, but instead log a warning.
			slog.Warn("failed to set io.max", "error", err)
		}
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		removeDir(path)
		return nil, fmt.Errorf("failed to open cgroup directory fd: %w", err)
	}

	return &Cgroup{path: path, fd: fd}, nil
}

// FD returns the cgroup directory file descriptor for SysProcAttr.CgroupFD.
func (c *Cgroup) FD() int {
	return c.fd
}

// Kill writes "1" to cgroup.kill, terminating all processes in this cgroup.
func (c *Cgroup) Kill() error {
	return os.WriteFile(filepath.Join(c.path, "cgroup.kill"), []byte("1"), 0644)
}

// Cleanup closes the directory fd and removes the cgroup directory, retrying
// briefly on EBUSY since the kernel can take a moment to tear down a cgroup
// after its last process exits.
func (c *Cgroup) Cleanup() error {
	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("failed to close cgroup fd: %w", err)
	}

	var err error
	for attempt := 0; attempt < 10; attempt++ {
		err = os.Remove(c.path)
		if err == nil || !errors.Is(err, unix.EBUSY) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return err
}

func removeDir(path string) {
	if err := os.Remove(path); err != nil {
		slog.Warn("failed to remove cgroup directory", "path", path, "error", err)
	}
}

// cleanupStaleDir kills any processes in child cgroups and removes the
// directory tree. Errors are logged as warnings since this is best-effort.
func cleanupStaleDir(dir string) {
	// Kill all processes in this cgroup and its children.
	if err := os.WriteFile(filepath.Join(dir, "cgroup.kill"), []byte("1"), 0644); err != nil {
		// Directory doesn't exist yet. Nothing to clean up.
		return
	}

	// Remove child cgroup directories, then the parent.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			slog.Warn("failed to remove child cgroup", "path", entry.Name(), "error", err)
		}
	}
	if err := os.Remove(dir); err != nil {
		slog.Warn("failed to remove parent cgroup", "path", dir, "error", err)
	}
}

// rootIOMax returns the io.max string for the root filesystem's block device.
//
// TODO: For simplicity, this hard-codes the path to the root directory, and
// finds which device is mapped to that directory. This could be extended to
// allow configuration of which disks have which limits.
func rootIOMax(readBPS, writeBPS int64) (string, error) {
	var stat syscall.Stat_t
	if err := syscall.Stat("/", &stat); err != nil {
		return "", err
	}
	major := unix.Major(stat.Dev)

	rbps := "max"
	if readBPS > 0 {
		rbps = strconv.FormatInt(readBPS, 10)
	}
	wbps := "max"
	if writeBPS > 0 {
		wbps = strconv.FormatInt(writeBPS, 10)
	}
	return fmt.Sprintf("%d:0 rbps=%s wbps=%s", major, rbps, wbps), nil
}
