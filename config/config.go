// Package config resolves teleworker's server and client settings from
// environment variables with command-line flag overrides, generalizing the
// per-command cobra flag structs the job-worker prototype this project
// grew out of used to wire cgroup limits and TLS paths into its CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/relaygrid/teleworker/resources"
)

// TLS holds the paths to the PEM files used for mutual TLS.
type TLS struct {
	CAFile   string
	CertFile string
	KeyFile  string
}

// Server holds everything the teleworker server command needs to start
// listening and servicing jobs.
type Server struct {
	Addr            string
	TLS             TLS
	ShutdownTimeout time.Duration

	CgroupParent string
	Limits       resources.Limits

	// RootfsDir and InitPath together enable full namespace isolation for
	// every job this server launches; see job.Options for their meaning.
	// Leaving either empty runs jobs under PID-namespace-only isolation.
	RootfsDir string
	InitPath  string

	// ReapAfter, if positive, starts a background sweep that reclaims
	// finished jobs older than this once per ReapInterval. Zero disables
	// the sweep; jobs then live in memory until the process exits.
	ReapAfter    time.Duration
	ReapInterval time.Duration
}

const (
	// DefaultShutdownTimeout bounds how long GracefulStop waits for
	// in-flight RPCs before the server forces a shutdown.
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultReapInterval is how often the background sweep runs when
	// ReapAfter is configured.
	DefaultReapInterval = 5 * time.Minute
)

// Flags registers the server's flags on cmd. Flag defaults are sourced from
// environment variables when set, so a deployment can configure teleworker
// entirely through its environment while still allowing an explicit flag to
// win on the command line.
func (c *Server) Flags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Addr, "addr", envOrDefault("TELEWORKER_ADDR", ":50051"), "server listen address")

	cmd.Flags().StringVar(&c.TLS.CAFile, "ca", envOrDefault("TELEWORKER_CA_FILE", "certs/ca.crt"), "path to CA certificate PEM")
	cmd.Flags().StringVar(&c.TLS.CertFile, "cert", envOrDefault("TELEWORKER_CERT_FILE", "certs/server.crt"), "path to server certificate PEM")
	cmd.Flags().StringVar(&c.TLS.KeyFile, "key", envOrDefault("TELEWORKER_KEY_FILE", "certs/server.key"), "path to server private key PEM")

	cmd.Flags().DurationVar(&c.ShutdownTimeout, "shutdown-timeout", envDurationOrDefault("TELEWORKER_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout), "time to wait for connections to close before forcing shutdown")

	cmd.Flags().StringVar(&c.CgroupParent, "cgroup-parent", envOrDefault("TELEWORKER_CGROUP_PARENT", "/sys/fs/cgroup/teleworker"), "parent cgroup v2 directory under which each job gets its own cgroup")

	limits := resources.DefaultLimits()
	cmd.Flags().StringVar(&c.Limits.CPUMax, "cpu-max", envOrDefault("TELEWORKER_CPU_MAX", limits.CPUMax), "cpu.max value applied to every job's cgroup")
	cmd.Flags().StringVar(&c.Limits.MemoryMax, "memory-max-bytes", envOrDefault("TELEWORKER_MEMORY_MAX_BYTES", limits.MemoryMax), "memory.max value in bytes applied to every job's cgroup")
	cmd.Flags().Int64Var(&c.Limits.IOReadBPS, "io-read-max-bps", envInt64OrDefault("TELEWORKER_IO_READ_MAX_BPS", limits.IOReadBPS), "read bytes/sec cap applied to every job's cgroup, 0 disables the cap")
	cmd.Flags().Int64Var(&c.Limits.IOWriteBPS, "io-write-max-bps", envInt64OrDefault("TELEWORKER_IO_WRITE_MAX_BPS", limits.IOWriteBPS), "write bytes/sec cap applied to every job's cgroup, 0 disables the cap")

	cmd.Flags().StringVar(&c.RootfsDir, "rootfs", envOrDefault("TELEWORKER_ROOTFS_DIR", ""), "prepared root filesystem directory jobs are pivoted into; empty disables mount/network isolation")
	cmd.Flags().StringVar(&c.InitPath, "init-path", envOrDefault("TELEWORKER_INIT_PATH", ""), "path to the teleworker-init helper binary; required when --rootfs is set")

	cmd.Flags().DurationVar(&c.ReapAfter, "reap-after", envDurationOrDefault("TELEWORKER_REAP_AFTER", 0), "reclaim finished jobs older than this automatically; 0 disables the sweep")
	cmd.Flags().DurationVar(&c.ReapInterval, "reap-interval", envDurationOrDefault("TELEWORKER_REAP_INTERVAL", DefaultReapInterval), "how often the automatic sweep runs when --reap-after is set")
}

// Validate checks field combinations Flags cannot enforce declaratively,
// such as one flag requiring another.
func (c *Server) Validate() error {
	if c.TLS.CAFile == "" {
		return fmt.Errorf("--ca is required")
	}
	if c.TLS.CertFile == "" {
		return fmt.Errorf("--cert is required")
	}
	if c.TLS.KeyFile == "" {
		return fmt.Errorf("--key is required")
	}
	if (c.RootfsDir == "") != (c.InitPath == "") {
		return fmt.Errorf("--rootfs and --init-path must be set together")
	}
	if c.Limits.IOReadBPS < 0 {
		return fmt.Errorf("--io-read-max-bps must not be negative")
	}
	if c.Limits.IOWriteBPS < 0 {
		return fmt.Errorf("--io-write-max-bps must not be negative")
	}
	return nil
}

// Client holds everything telerun needs to reach a teleworker server.
type Client struct {
	Addr string
	TLS  TLS
}

// Flags registers the client's flags on cmd.
func (c *Client) Flags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.Addr, "addr", envOrDefault("TELERUN_ADDR", "localhost:50051"), "teleworker server address")

	cmd.PersistentFlags().StringVar(&c.TLS.CAFile, "ca", envOrDefault("TELERUN_CA_FILE", "certs/ca.crt"), "path to CA certificate PEM")
	// Default to running as the user alice, using alice's key and cert.
	cmd.PersistentFlags().StringVar(&c.TLS.CertFile, "cert", envOrDefault("TELERUN_CERT_FILE", "certs/alice.crt"), "path to client certificate PEM")
	cmd.PersistentFlags().StringVar(&c.TLS.KeyFile, "key", envOrDefault("TELERUN_KEY_FILE", "certs/alice.key"), "path to client private key PEM")
}

// Validate checks that the fields required to dial a server are present.
func (c *Client) Validate() error {
	if c.TLS.CAFile == "" {
		return fmt.Errorf("--ca is required")
	}
	if c.TLS.CertFile == "" {
		return fmt.Errorf("--cert is required")
	}
	if c.TLS.KeyFile == "" {
		return fmt.Errorf("--key is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64OrDefault(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
