package oggopus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	opusHeadMagic = "OpusHead"
	opusTagsMagic = "OpusTags"

	// opusHeadSize is the size of an OpusHead packet with mapping family 0.
	opusHeadSize = 19

	opusHeadVersion = 1
)

// ErrInvalidHeader is returned when an OpusHead or OpusTags packet cannot be
// parsed.
var ErrInvalidHeader = errors.New("oggopus: invalid header")

// OpusHead is the identification header, the first packet of the stream.
// Only channel mapping family 0 (mono or stereo) is supported.
type OpusHead struct {
	Channels uint8
	// PreSkip is the number of samples to discard from the start of the
	// decoded output.
	PreSkip uint16
	// InputSampleRate is informational; 0 means unspecified.
	InputSampleRate uint32
	// OutputGain in Q7.8 dB.
	OutputGain int16
}

// MarshalBinary encodes the 19-byte header.
func (h OpusHead) MarshalBinary() ([]byte, error) {
	if h.Channels != 1 && h.Channels != 2 {
		return nil, fmt.Errorf("%w: %d channels need a mapping table", ErrInvalidHeader, h.Channels)
	}
	b := make([]byte, opusHeadSize)
	copy(b[0:8], opusHeadMagic)
	b[8] = opusHeadVersion
	b[9] = h.Channels
	binary.LittleEndian.PutUint16(b[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(b[12:16], h.InputSampleRate)
	binary.LittleEndian.PutUint16(b[16:18], uint16(h.OutputGain))
	b[18] = 0 // mapping family
	return b, nil
}

// ParseOpusHead decodes an identification header packet.
func ParseOpusHead(b []byte) (OpusHead, error) {
	if len(b) < opusHeadSize || !bytes.HasPrefix(b, []byte(opusHeadMagic)) {
		return OpusHead{}, fmt.Errorf("%w: not an OpusHead packet", ErrInvalidHeader)
	}
	// Minor versions share the major version nibble.
	if b[8]>>4 != 0 {
		return OpusHead{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, b[8])
	}
	h := OpusHead{
		Channels:        b[9],
		PreSkip:         binary.LittleEndian.Uint16(b[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(b[12:16]),
		OutputGain:      int16(binary.LittleEndian.Uint16(b[16:18])),
	}
	if b[18] != 0 {
		return OpusHead{}, fmt.Errorf("%w: unsupported channel mapping family %d", ErrInvalidHeader, b[18])
	}
	if h.Channels != 1 && h.Channels != 2 {
		return OpusHead{}, fmt.Errorf("%w: %d channels with mapping family 0", ErrInvalidHeader, h.Channels)
	}
	return h, nil
}

// OpusTags is the comment header, the second packet of the stream.
type OpusTags struct {
	Vendor   string
	Comments []string
}

// MarshalBinary encodes the header.
func (t OpusTags) MarshalBinary() ([]byte, error) {
	size := 8 + 4 + len(t.Vendor) + 4
	for _, c := range t.Comments {
		size += 4 + len(c)
	}
	b := make([]byte, 0, size)
	b = append(b, opusTagsMagic...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Vendor)))
	b = append(b, t.Vendor...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(t.Comments)))
	for _, c := range t.Comments {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(c)))
		b = append(b, c...)
	}
	return b, nil
}

// ParseOpusTags decodes a comment header packet.
func ParseOpusTags(b []byte) (OpusTags, error) {
	if !bytes.HasPrefix(b, []byte(opusTagsMagic)) {
		return OpusTags{}, fmt.Errorf("%w: not an OpusTags packet", ErrInvalidHeader)
	}
	b = b[8:]
	next := func() (string, error) {
		if len(b) < 4 {
			return "", fmt.Errorf("%w: truncated OpusTags", ErrInvalidHeader)
		}
		n := binary.LittleEndian.Uint32(b)
		b = b[4:]
		if uint64(n) > uint64(len(b)) {
			return "", fmt.Errorf("%w: truncated OpusTags", ErrInvalidHeader)
		}
		s := string(b[:n])
		b = b[n:]
		return s, nil
	}

	var t OpusTags
	var err error
	if t.Vendor, err = next(); err != nil {
		return OpusTags{}, err
	}
	if len(b) < 4 {
		return OpusTags{}, fmt.Errorf("%w: truncated OpusTags", ErrInvalidHeader)
	}
	count := binary.LittleEndian.Uint32(b)
	b = b[4:]
	// Each comment needs at least its length field.
	if uint64(count)*4 > uint64(len(b)) {
		return OpusTags{}, fmt.Errorf("%w: truncated OpusTags", ErrInvalidHeader)
	}
	for range count {
		c, err := next()
		if err != nil {
			return OpusTags{}, err
		}
		t.Comments = append(t.Comments, c)
	}
	return t, nil
}

// IsHeader reports whether a packet is an OpusHead or OpusTags header.
func IsHeader(data []byte) bool {
	return bytes.HasPrefix(data, []byte(opusHeadMagic)) || bytes.HasPrefix(data, []byte(opusTagsMagic))
}
