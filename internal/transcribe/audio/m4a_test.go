package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// buildM4A assembles ftyp + moov/mvhd boxes for the given header version.
func buildM4A(brand string, version byte, created time.Time, seconds uint32) []byte {
	var buf bytes.Buffer

	ftyp := make([]byte, 20)
	binary.BigEndian.PutUint32(ftyp[0:4], 20)
	copy(ftyp[4:8], "ftyp")
	copy(ftyp[8:12], brand)
	copy(ftyp[16:20], brand)
	buf.Write(ftyp)

	mac := uint64(created.Sub(macEpoch) / time.Second)

	var body []byte
	if version == 0 {
		body = make([]byte, 100)
		binary.BigEndian.PutUint32(body[4:8], uint32(mac))
		binary.BigEndian.PutUint32(body[8:12], uint32(mac))
		binary.BigEndian.PutUint32(body[12:16], 1000)
		binary.BigEndian.PutUint32(body[16:20], seconds*1000)
	} else {
		body = make([]byte, 112)
		body[0] = 1
		binary.BigEndian.PutUint64(body[4:12], mac)
		binary.BigEndian.PutUint64(body[12:20], mac)
		binary.BigEndian.PutUint32(body[20:24], 48000)
		binary.BigEndian.PutUint64(body[24:32], uint64(seconds)*48000)
	}

	mvhd := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(mvhd[0:4], uint32(len(mvhd)))
	copy(mvhd[4:8], "mvhd")
	copy(mvhd[8:], body)

	moov := make([]byte, 8)
	binary.BigEndian.PutUint32(moov[0:4], uint32(8+len(mvhd)))
	copy(moov[4:8], "moov")
	buf.Write(moov)
	buf.Write(mvhd)

	return buf.Bytes()
}

func TestProbeM4A(t *testing.T) {
	created := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		version byte
		seconds uint32
	}{
		{"v0 short", 0, 10},
		{"v0 hour", 0, 3600},
		{"v1 meeting", 1, 2700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rec.m4a")
			if err := os.WriteFile(path, buildM4A("M4A ", tt.version, created, tt.seconds), 0644); err != nil {
				t.Fatal(err)
			}

			rec, err := ProbeM4A(path)
			if err != nil {
				t.Fatalf("ProbeM4A failed: %v", err)
			}
			if want := time.Duration(tt.seconds) * time.Second; rec.Duration != want {
				t.Errorf("duration = %v, want %v", rec.Duration, want)
			}
			if !rec.Created.Equal(created) {
				t.Errorf("created = %v, want %v", rec.Created, created)
			}
		})
	}
}

func TestProbeM4A_InvalidBrand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.m4a")
	if err := os.WriteFile(path, buildM4A("XXXX", 0, time.Now(), 1), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ProbeM4A(path); !errors.Is(err, ErrInvalidM4A) {
		t.Errorf("expected ErrInvalidM4A, got %v", err)
	}
}

func TestProbeM4A_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.m4a")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ProbeM4A(path); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestProbeM4A_Missing(t *testing.T) {
	if _, err := ProbeM4A("/nonexistent/file.m4a"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
