package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEmptyTranscript is returned when the service answers with no text.
var ErrEmptyTranscript = errors.New("empty transcript")

// TranscriptionError is a failed transcription of one file.
type TranscriptionError struct {
	File string
	Err  error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe %s: %v", e.File, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Transcriber renders a TranscriptionClient result as a markdown transcript.
type Transcriber struct {
	client TranscriptionClient
	opts   TranscribeOptions
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(c TranscriptionClient, opts TranscribeOptions) *Transcriber {
	return &Transcriber{client: c, opts: opts}
}

// Transcribe returns the transcript of audioPath.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	result, err := t.client.Transcribe(ctx, audioPath, t.opts)
	if err != nil {
		return "", &TranscriptionError{File: filepath.Base(audioPath), Err: err}
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", &TranscriptionError{File: filepath.Base(audioPath), Err: ErrEmptyTranscript}
	}

	return "# Transcript\n\n" + text + "\n", nil
}
