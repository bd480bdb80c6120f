package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
)

type watchOptions struct {
	stableSeconds int
	pollInterval  float64
	maxSizeMB     int
	modes         string
	queueSize     int
	metricsAddr   string
}

// NewWatchCmd creates the watch command
func NewWatchCmd(global *globalOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [input-dir]",
		Short: "Transcribe new recordings as they arrive",
		Long: `Watch the input folder and transcribe each new recording once it has
stopped growing.

Only files that appear after the watcher starts are handled; use
'meetscribe process' for a backlog. The watcher runs in the foreground
until interrupted with Ctrl+C or 'meetscribe stop'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) == 1 {
				input = args[0]
			}
			return runWatch(cmd, global, opts, input)
		},
	}

	cmd.Flags().IntVar(&opts.stableSeconds, "stable-seconds", 0, "seconds a file must stop growing (default: watcher.stable_seconds)")
	cmd.Flags().Float64Var(&opts.pollInterval, "poll-interval", 0, "seconds between directory scans (default: watcher.poll_interval_seconds)")
	cmd.Flags().IntVar(&opts.maxSizeMB, "max-size-mb", 0, "skip files larger than this (default: watcher.max_filesize_mb)")
	cmd.Flags().StringVar(&opts.modes, "modes", "", "note modes to generate, e.g. QWE (default: processing.default_modes)")
	cmd.Flags().IntVar(&opts.queueSize, "queue-size", 0, "queue stable files and keep scanning while they are processed")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runWatch(cmd *cobra.Command, global *globalOptions, opts *watchOptions, input string) error {
	l, err := global.load()
	if err != nil {
		return err
	}
	cfg := l.cfg
	flags := cmd.Flags()

	if flags.Changed("stable-seconds") {
		cfg.Watcher.StableSeconds = opts.stableSeconds
	}
	if flags.Changed("poll-interval") {
		cfg.Watcher.PollIntervalSeconds = opts.pollInterval
	}
	if flags.Changed("max-size-mb") {
		cfg.Watcher.MaxFilesizeMB = opts.maxSizeMB
	}
	if flags.Changed("modes") {
		cfg.Processing.DefaultModes = opts.modes
	}
	if flags.Changed("queue-size") {
		cfg.Processing.QueueSize = opts.queueSize
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Listen = opts.metricsAddr
	}
	modes, err := notes.ParseModes(cfg.Processing.DefaultModes)
	if err != nil {
		return fmt.Errorf("invalid --modes: %w", err)
	}
	// Nobody is at the terminal to answer event prompts.
	cfg.Calendar.SelectInteractively = false

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := transcribe.NewService(ctx, cfg,
		transcribe.WithPIDFile(pidfile.New(l.dir)),
		transcribe.WithConsole(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	watchDir := cfg.Paths.InputDir
	if input != "" {
		watchDir = input
	}
	fmt.Fprintf(out, "Watching: %s\n", watchDir)
	fmt.Fprintf(out, "Output:   %s\n", cfg.Paths.OutputDir)
	fmt.Fprintf(out, "Log:      %s\n", svc.LogPath())
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	res, err := svc.Watch(ctx, input, modes)
	fmt.Fprintf(out, "Processed: %d  Skipped: %d  Failed: %d  Total: %d\n", res.Processed, res.Skipped, res.Failed, res.Total())
	return err
}
