// Package isolation builds the sandboxed environment a job's command runs
// in: a fresh root filesystem reached via pivot_root, a freshly mounted
// /proc and read-only /sys, and a loopback-only network namespace. It is
// meant to run inside a process that was already cloned into new PID,
// mount, and network namespaces (see job.fullIsolationFlags) - it does not
// create those namespaces itself, only furnishes them.
package isolation

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitCodeSetupFailure is the helper's distinguished exit code for a failure
// that happens before the user command is exec'd. The reaper uses this to
// tell "the command ran and exited non-zero" apart from "setup itself
// never got the command running".
const ExitCodeSetupFailure = 113

// Config describes the isolated environment to assemble before exec-ing the
// user command.
type Config struct {
	// RootfsDir is a prepared root filesystem image directory. It is
	// bind-mounted onto itself and then pivoted into as "/". Populating it
	// with a usable set of binaries and libraries is outside this package's
	// concern.
	RootfsDir string
	Command   string
	Args      []string
}

// Run assembles the rootfs, mounts, and loopback network described by cfg,
// then replaces the calling process's image with cfg.Command via exec. On
// success it never returns; the process becomes the user command. Any error
// returned here should be surfaced by the caller as ExitCodeSetupFailure so
// it is distinguishable from the user command's own exit status.
func Run(cfg Config) error {
	if err := mountRootfs(cfg.RootfsDir); err != nil {
		return fmt.Errorf("mount rootfs: %w", err)
	}
	if err := bringUpLoopback(); err != nil {
		return fmt.Errorf("bring up loopback: %w", err)
	}

	argv0, err := exec.LookPath(cfg.Command)
	if err != nil {
		return fmt.Errorf("resolve command %q: %w", cfg.Command, err)
	}
	argv := append([]string{cfg.Command}, cfg.Args...)
	if err := syscall.Exec(argv0, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %q: %w", cfg.Command, err)
	}
	return nil
}

// mountRootfs bind-mounts rootfs onto itself (pivot_root requires the new
// root to be a mount point), pivots into it, detaches the old root, and
// mounts a fresh /proc and a read-only /sys reflecting only this process's
// new namespaces.
func mountRootfs(rootfs string) error {
	// Prevent mount/unmount events here from propagating back to the host's
	// mount namespace.
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("make mount tree private: %w", err)
	}

	if err := unix.Mount(rootfs, rootfs, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("bind mount %q onto itself: %w", rootfs, err)
	}

	oldRoot := filepath.Join(rootfs, ".old_root")
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return fmt.Errorf("create old root mountpoint: %w", err)
	}

	if err := unix.PivotRoot(rootfs, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir to new root: %w", err)
	}

	// The old root is now mounted at /.old_root of the new root; detach it
	// lazily so it disappears once nothing still has it open.
	const oldRootInNewRoot = "/.old_root"
	if err := unix.Unmount(oldRootInNewRoot, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("unmount old root: %w", err)
	}
	if err := os.RemoveAll(oldRootInNewRoot); err != nil {
		return fmt.Errorf("remove old root mountpoint: %w", err)
	}

	if err := os.MkdirAll("/proc", 0o555); err != nil {
		return fmt.Errorf("create /proc: %w", err)
	}
	if err := unix.Mount("proc", "/proc", "proc", 0, ""); err != nil {
		return fmt.Errorf("mount /proc: %w", err)
	}

	if err := os.MkdirAll("/sys", 0o555); err != nil {
		return fmt.Errorf("create /sys: %w", err)
	}
	if err := unix.Mount("sysfs", "/sys", "sysfs", unix.MS_RDONLY, ""); err != nil {
		return fmt.Errorf("mount /sys: %w", err)
	}

	return nil
}

// bringUpLoopback sets IFF_UP on the "lo" interface inside the calling
// process's network namespace. No other interface, route, or DNS
// configuration is provisioned: the job is offline by default.
func bringUpLoopback() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return fmt.Errorf("open control socket: %w", err)
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq("lo")
	if err != nil {
		return fmt.Errorf("build ifreq: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return fmt.Errorf("get lo flags: %w", err)
	}

	flags := ifr.Uint16()
	ifr.SetUint16(flags | unix.IFF_UP | unix.IFF_RUNNING)
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return fmt.Errorf("set lo flags: %w", err)
	}
	return nil
}
