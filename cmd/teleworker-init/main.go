// Program teleworker-init is the isolation helper: the Job Controller spawns
// it with fresh PID, mount, and network namespaces already requested via
// Cloneflags, and it is responsible for assembling the sandboxed environment
// before handing off to the user's command. It is never invoked by a human;
// it has no subcommands and no cobra dependency on purpose, since there is
// nothing here for a user to discover or configure interactively.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/relaygrid/teleworker/isolation"
)

func main() {
	jobID := flag.String("job-id", "", "job identifier, used only for log context")
	rootfs := flag.String("rootfs", "", "prepared root filesystem directory to pivot into")
	flag.Parse()

	argv := flag.Args()
	if len(argv) == 0 {
		fail(*jobID, fmt.Errorf("no command given after --"))
	}
	if *rootfs == "" {
		fail(*jobID, fmt.Errorf("--rootfs is required"))
	}

	err := isolation.Run(isolation.Config{
		RootfsDir: *rootfs,
		Command:   argv[0],
		Args:      argv[1:],
	})
	// isolation.Run only returns on failure: success replaces this process
	// image with the user's command.
	fail(*jobID, err)
}

func fail(jobID string, err error) {
	slog.Error("isolation setup failed", "jobID", jobID, "error", err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(isolation.ExitCodeSetupFailure)
}
