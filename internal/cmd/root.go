package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
	"github.com/TechnicallyShaun/meetscribe/internal/workspace"
)

// ExitCancelled is the exit status after an interrupted batch or watch.
const ExitCancelled = 130

// globalOptions are flags shared by every command.
type globalOptions struct {
	configPath string
}

// NewRootCmd creates the root command for the meetscribe CLI
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "meetscribe",
		Short:         "Turn meeting recordings into transcripts and notes",
		Long:          "meetscribe transcribes audio recordings with a Whisper ASR service, links them to calendar events and generates meeting notes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: workspace config.toml)")

	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewProcessCmd(opts))
	rootCmd.AddCommand(NewWatchCmd(opts))
	rootCmd.AddCommand(NewStopCmd(opts))
	rootCmd.AddCommand(NewStatusCmd(opts))
	rootCmd.AddCommand(NewConfigCmd(opts))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, processor.ErrCancelled):
		return ExitCancelled
	default:
		return 1
	}
}

// loaded is a config together with the directory holding runtime state.
type loaded struct {
	dir string
	cfg *transcribe.Config
}

// load reads --config when given, otherwise the workspace config.
func (o *globalOptions) load() (*loaded, error) {
	if o.configPath != "" {
		abs, err := filepath.Abs(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg, err := transcribe.LoadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return withLogDir(&loaded{dir: filepath.Dir(abs), cfg: cfg}), nil
	}

	ws, err := workspace.Find()
	if err != nil {
		return nil, fmt.Errorf("%w (run 'meetscribe init' first)", err)
	}
	cfg, err := transcribe.Load(ws.Dir())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return withLogDir(&loaded{dir: ws.Dir(), cfg: cfg}), nil
}

func withLogDir(l *loaded) *loaded {
	if l.cfg.Logging.Dir == "" {
		l.cfg.Logging.Dir = filepath.Join(l.dir, "logs")
	}
	return l
}
