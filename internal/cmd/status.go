package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/status"
)

// NewStatusCmd creates the status command
func NewStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show watcher status and today's activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := global.load()
			if err != nil {
				return err
			}

			report, err := status.Collect(pidfile.New(l.dir), l.cfg.Logging.Dir, transcribe.LogPrefix)
			if err != nil {
				return err
			}
			printStatus(cmd, report)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, r *status.Report) {
	out := cmd.OutOrStdout()

	switch {
	case r.Running:
		fmt.Fprintf(out, "Watcher:    running (PID %d)\n", r.PID)
	case r.PID != 0:
		fmt.Fprintf(out, "Watcher:    not running (stale PID %d)\n", r.PID)
	default:
		fmt.Fprintln(out, "Watcher:    not running")
	}
	fmt.Fprintf(out, "Log:        %s\n", r.LogPath)

	s := r.Stats
	if !s.WatcherStarted.IsZero() {
		fmt.Fprintf(out, "Started:    %s\n", status.FormatTimestamp(s.WatcherStarted))
	}
	fmt.Fprintf(out, "Today:      %d transcribed, %d notes, %d errors\n", s.FilesProcessed, s.NotesWritten, s.Errors)
	if s.LastProcessed != nil {
		fmt.Fprintf(out, "Last file:  %s -> %s (%s)\n",
			s.LastProcessed.File, s.LastProcessed.Output, status.FormatTimestamp(s.LastProcessed.Timestamp))
	}
}
