package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of the canonical header written by
// WriteWAVHeader.
const WAVHeaderSize = 44

// ErrNotWAV is returned by ReadWAVHeader for input that is not a 16-bit PCM
// RIFF/WAVE stream.
var ErrNotWAV = errors.New("pcm: not a 16-bit PCM wav stream")

// WriteWAVHeader writes a canonical 44-byte RIFF/WAVE header for dataSize
// bytes of PCM in format f.
func WriteWAVHeader(w io.Writer, f Format, dataSize uint32) error {
	var h [WAVHeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.BytesRate()))
	binary.LittleEndian.PutUint16(h[32:34], uint16(f.FrameBytes()))
	binary.LittleEndian.PutUint16(h[34:36], Depth)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	_, err := w.Write(h[:])
	return err
}

// ReadWAVHeader consumes a RIFF/WAVE header from r, skipping chunks other
// than "fmt " and "data". On success r is positioned at the first sample
// and the data chunk size is returned.
func ReadWAVHeader(r io.Reader) (Format, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, 0, fmt.Errorf("pcm: read wav header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, 0, ErrNotWAV
	}

	var (
		f      Format
		gotFmt bool
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return Format{}, 0, fmt.Errorf("pcm: read wav chunk: %w", err)
		}
		size := binary.LittleEndian.Uint32(ch[4:8])
		switch string(ch[0:4]) {
		case "fmt ":
			if size < 16 {
				return Format{}, 0, ErrNotWAV
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, 0, fmt.Errorf("pcm: read wav fmt: %w", err)
			}
			// 1 = PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE
			tag := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			if (tag != 1 && tag != 0xFFFE) || bits != Depth {
				return Format{}, 0, ErrNotWAV
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return Format{}, 0, ErrNotWAV
			}
			if err := f.Validate(); err != nil {
				return Format{}, 0, err
			}
			return f, size, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return Format{}, 0, fmt.Errorf("pcm: skip wav chunk: %w", err)
			}
		}
	}
}
