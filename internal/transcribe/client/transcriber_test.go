package client

import (
	"context"
	"errors"
	"testing"
)

func TestTranscriber_Markdown(t *testing.T) {
	mock := &mockClient{results: []mockResult{{result: &TranscriptionResult{Text: "  Let's begin.  "}}}}

	got, err := NewTranscriber(mock, TranscribeOptions{}).Transcribe(context.Background(), "/in/standup.wav")
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Transcript\n\nLet's begin.\n" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestTranscriber_Errors(t *testing.T) {
	apiErr := &APIError{StatusCode: 500, Body: "boom"}

	tests := []struct {
		name    string
		result  mockResult
		wantErr error
	}{
		{"client error", mockResult{err: apiErr}, apiErr},
		{"empty text", mockResult{result: &TranscriptionResult{Text: "  \n"}}, ErrEmptyTranscript},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockClient{results: []mockResult{tt.result}}
			_, err := NewTranscriber(mock, TranscribeOptions{}).Transcribe(context.Background(), "/in/standup.wav")

			var te *TranscriptionError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TranscriptionError, got %v", err)
			}
			if te.File != "standup.wav" {
				t.Errorf("File = %q", te.File)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
		})
	}
}
