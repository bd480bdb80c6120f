package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
)

// stopTimeout is how long to wait for a graceful exit before SIGKILL.
const stopTimeout = 10 * time.Second

// NewStopCmd creates the stop command
func NewStopCmd(global *globalOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running watcher",
		Long: `Stop the watcher started with 'meetscribe watch'.

Sends SIGTERM to the process recorded in the workspace pidfile. If it has
not exited within the timeout, SIGKILL is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := global.load()
			if err != nil {
				return err
			}
			return runStop(cmd, pidfile.New(l.dir), timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", stopTimeout, "time to wait before sending SIGKILL")
	return cmd
}

func runStop(cmd *cobra.Command, pf *pidfile.File, timeout time.Duration) error {
	out := cmd.OutOrStdout()

	pid, err := pf.Signal(unix.SIGTERM)
	if err != nil {
		if errors.Is(err, pidfile.ErrNotRunning) {
			return err
		}
		return fmt.Errorf("stop watcher: %w", err)
	}

	fmt.Fprintf(out, "Stopping watcher (PID %d)...\n", pid)

	if !waitForExit(pid, timeout) {
		fmt.Fprintln(out, "Watcher did not exit gracefully, sending SIGKILL...")
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("send SIGKILL: %w", err)
		}
		waitForExit(pid, 2*time.Second)
	}

	// The watcher removes its own pidfile; this covers SIGKILL.
	if err := pf.Remove(); err != nil {
		fmt.Fprintf(out, "Warning: %v\n", err)
	}

	fmt.Fprintln(out, "Watcher stopped")
	return nil
}

// waitForExit polls until pid is gone or timeout passes.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
