package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"
)

// ErrInvalidM4A indicates the file is not a parseable M4A/MP4 container.
var ErrInvalidM4A = errors.New("invalid M4A format")

// macEpoch is the MP4 time origin.
var macEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

// Recording holds what the container header says about a recording.
type Recording struct {
	Created  time.Time
	Duration time.Duration
}

// ProbeM4A reads the movie header of an M4A file.
func ProbeM4A(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()

	return parseM4A(f)
}

func parseM4A(r io.ReadSeeker) (Recording, error) {
	var rec Recording
	var foundFtyp, foundMvhd bool

	for {
		size, kind, err := readBoxHeader(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Recording{}, err
		}
		if size < 8 {
			return Recording{}, ErrInvalidM4A
		}

		switch kind {
		case "ftyp":
			if err := checkBrand(r, size-8); err != nil {
				return Recording{}, err
			}
			foundFtyp = true
		case "moov":
			// Descend: mvhd is a direct child of moov.
			found, err := scanMoov(r, size-8, &rec)
			if err != nil {
				return Recording{}, err
			}
			foundMvhd = found
		default:
			if _, err := r.Seek(int64(size-8), io.SeekCurrent); err != nil {
				return Recording{}, err
			}
		}
	}

	if !foundFtyp || !foundMvhd {
		return Recording{}, ErrInvalidM4A
	}
	return rec, nil
}

func readBoxHeader(r io.Reader) (uint32, string, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, "", err
	}
	return binary.BigEndian.Uint32(header[0:4]), string(header[4:8]), nil
}

func checkBrand(r io.ReadSeeker, remaining uint32) error {
	var brand [4]byte
	if _, err := io.ReadFull(r, brand[:]); err != nil {
		return err
	}
	switch string(brand[:]) {
	case "M4A ", "mp41", "mp42", "isom":
	default:
		return ErrInvalidM4A
	}
	if remaining > 4 {
		if _, err := r.Seek(int64(remaining-4), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

func scanMoov(r io.ReadSeeker, remaining uint32, rec *Recording) (bool, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return false, err
	}
	end := start + int64(remaining)
	found := false

	for {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return false, err
		}
		if pos >= end {
			return found, nil
		}

		size, kind, err := readBoxHeader(r)
		if err != nil {
			return false, err
		}
		if size < 8 {
			return false, ErrInvalidM4A
		}

		if kind == "mvhd" {
			if err := readMvhd(r, size-8, rec); err != nil {
				return false, err
			}
			found = true
			continue
		}
		if _, err := r.Seek(int64(size-8), io.SeekCurrent); err != nil {
			return false, err
		}
	}
}

// readMvhd handles both the 32-bit (v0) and 64-bit (v1) header layouts.
func readMvhd(r io.ReadSeeker, remaining uint32, rec *Recording) error {
	var vf [4]byte
	if _, err := io.ReadFull(r, vf[:]); err != nil {
		return err
	}

	var created, duration uint64
	var timescale uint32
	read := uint32(4)

	switch vf[0] {
	case 0:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		created = uint64(binary.BigEndian.Uint32(b[0:4]))
		timescale = binary.BigEndian.Uint32(b[8:12])
		duration = uint64(binary.BigEndian.Uint32(b[12:16]))
		read += 16
	case 1:
		var b [28]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		created = binary.BigEndian.Uint64(b[0:8])
		timescale = binary.BigEndian.Uint32(b[16:20])
		duration = binary.BigEndian.Uint64(b[20:28])
		read += 28
	default:
		return ErrInvalidM4A
	}

	rec.Created = macEpoch.Add(time.Duration(created) * time.Second)
	if timescale > 0 {
		rec.Duration = time.Duration(duration) * time.Second / time.Duration(timescale)
	}

	if remaining > read {
		if _, err := r.Seek(int64(remaining-read), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}
