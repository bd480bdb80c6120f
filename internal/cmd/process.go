package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/audio"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/notes"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
)

type processOptions struct {
	reprocess  bool
	modes      string
	yes        bool
	selectMode bool
	calendar   bool
	workers    int
}

// NewProcessCmd creates the process command
func NewProcessCmd(global *globalOptions) *cobra.Command {
	opts := &processOptions{}

	cmd := &cobra.Command{
		Use:   "process [input-dir]",
		Short: "Transcribe the recordings in a folder",
		Long: `Transcribe every recording in the input folder that has no transcript yet.

When more files are found than processing.soft_limit you are asked to
confirm; above processing.hard_limit you always pick files from a list.
Modes add generated notes next to each transcript:
  Q  executive summary
  W  holistic analysis
  E  task extraction`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input string
			if len(args) == 1 {
				input = args[0]
			}
			return runProcess(cmd, global, opts, input)
		},
	}

	cmd.Flags().BoolVar(&opts.reprocess, "reprocess", false, "regenerate notes for files that already have a transcript")
	cmd.Flags().StringVar(&opts.modes, "modes", "", "note modes to generate, e.g. QWE (default: processing.default_modes)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "process everything below the hard limit without asking")
	cmd.Flags().BoolVar(&opts.selectMode, "select", false, "always pick files interactively")
	cmd.Flags().BoolVar(&opts.calendar, "calendar", false, "link recordings to calendar events")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "files processed at once (default: processing.workers)")

	return cmd
}

func runProcess(cmd *cobra.Command, global *globalOptions, opts *processOptions, input string) error {
	l, err := global.load()
	if err != nil {
		return err
	}
	cfg := l.cfg
	out := cmd.OutOrStdout()

	if cmd.Flags().Changed("reprocess") {
		cfg.Processing.Reprocess = opts.reprocess
	}
	if opts.calendar {
		cfg.Calendar.Enabled = true
	}
	if cmd.Flags().Changed("workers") {
		cfg.Processing.Workers = opts.workers
	}
	if cmd.Flags().Changed("modes") {
		cfg.Processing.DefaultModes = opts.modes
	}
	modes, err := notes.ParseModes(cfg.Processing.DefaultModes)
	if err != nil {
		return fmt.Errorf("invalid --modes: %w", err)
	}
	// Event prompts cannot interleave.
	if cfg.Calendar.Enabled && cfg.Calendar.SelectInteractively {
		cfg.Processing.Workers = 1
	}

	prompter := NewIOPrompter(cmd.InOrStdin(), out)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := transcribe.NewService(ctx, cfg,
		transcribe.WithEventChooser(NewEventPrompter(prompter, out)),
		transcribe.WithConsole(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer svc.Close()

	if len(modes) > 0 && !svc.NotesEnabled() {
		fmt.Fprintf(out, "Warning: notes are disabled (no Gemini API key); modes %s will be skipped.\n", modes)
	}

	dir, files, err := svc.Candidates(input, cfg.Processing.Reprocess)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No new recordings in %s\n", dir)
		return nil
	}

	selected, runModes, err := choose(svc, prompter, out, files, modes, opts, cfg.Processing)
	if errors.Is(err, ErrSelectionCancelled) {
		fmt.Fprintln(out, "Selection cancelled; nothing processed.")
		return nil
	}
	if err != nil {
		return err
	}

	return runBatch(ctx, svc, out, selected, runModes, cfg.Processing.Reprocess)
}

// choose applies the selection policy, asking the operator when needed.
func choose(svc *transcribe.Service, p Prompter, out io.Writer, files []audio.File, modes notes.ModeSet, opts *processOptions, pc transcribe.ProcessingConfig) ([]audio.File, processor.Modes, error) {
	decision := svc.Decide(len(files))
	svc.Logger().Debug("selection policy",
		logging.String("decision", decision.String()),
		logging.Int("candidates", len(files)))

	switch {
	case decision == processor.ForceSelect:
		svc.Logger().Warn("candidate count exceeds hard limit",
			logging.Int("candidates", len(files)),
			logging.Int("hard_limit", pc.HardLimit))
		fmt.Fprintf(out, "Found %d files (exceeds hard limit of %d). Select the files to process.\n", len(files), pc.HardLimit)
	case opts.selectMode:
	case decision == processor.PromptUser && !opts.yes:
		question := fmt.Sprintf("Found %d files (soft limit %d). Process all of them?", len(files), pc.SoftLimit)
		if confirm(p, question) {
			return files, processor.GlobalModes(modes), nil
		}
	default:
		return files, processor.GlobalModes(modes), nil
	}

	return selectFiles(p, out, files, modes, time.Now())
}

func runBatch(ctx context.Context, svc *transcribe.Service, out io.Writer, files []audio.File, modes processor.Modes, reprocess bool) error {
	res, err := svc.Process(ctx, files, modes, reprocess)
	fmt.Fprintf(out, "Processed: %d  Skipped: %d  Failed: %d  Total: %d\n", res.Processed, res.Skipped, res.Failed, res.Total())
	return err
}
