package cmd

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/pidfile"
)

func TestRunStop_NotRunning(t *testing.T) {
	pf := pidfile.New(t.TempDir())
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	if err := runStop(cmd, pf, time.Second); !errors.Is(err, pidfile.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning without a pidfile, got %v", err)
	}
}

func TestRunStop_StalePID(t *testing.T) {
	done := exec.Command("true")
	if err := done.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}

	pf := pidfile.New(t.TempDir())
	pf.Write(done.Process.Pid)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	if err := runStop(cmd, pf, time.Second); !errors.Is(err, pidfile.ErrNotRunning) {
		t.Errorf("expected ErrNotRunning for a stale pid, got %v", err)
	}
	if _, err := os.Stat(pf.Path); !os.IsNotExist(err) {
		t.Error("expected stale pidfile removed")
	}
}

func TestRunStop_Terminates(t *testing.T) {
	proc := exec.Command("sleep", "30")
	if err := proc.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		proc.Wait()
		close(exited)
	}()

	pf := pidfile.New(t.TempDir())
	if err := pf.Write(proc.Process.Pid); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := runStop(cmd, pf, 5*time.Second); err != nil {
		t.Fatalf("runStop failed: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		proc.Process.Kill()
		t.Fatal("process still running after stop")
	}

	if !strings.Contains(out.String(), "Watcher stopped") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if _, err := os.Stat(pf.Path); !os.IsNotExist(err) {
		t.Error("expected pidfile removed")
	}
}
