package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFilesTotal_CountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(FilesTotal.WithLabelValues(OutcomeProcessed))

	FilesTotal.WithLabelValues(OutcomeProcessed).Inc()
	FilesTotal.WithLabelValues(OutcomeProcessed).Inc()

	if got := testutil.ToFloat64(FilesTotal.WithLabelValues(OutcomeProcessed)); got != before+2 {
		t.Errorf("expected %v, got %v", before+2, got)
	}
}

func TestWatchedFiles_Gauge(t *testing.T) {
	WatchedFiles.Set(3)
	if got := testutil.ToFloat64(WatchedFiles); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}
