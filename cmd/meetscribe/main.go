package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/TechnicallyShaun/meetscribe/internal/cmd"
	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/processor"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, processor.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "processing cancelled")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
