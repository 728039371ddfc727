package opusenc

import (
	"errors"

	"github.com/haivivi/oggvoice/pkg/audio/codec/opus"
)

// Native is the codec the buffered encoder drives. *opus.Encoder implements
// it.
type Native interface {
	// EncodeBytes encodes exactly frameSize samples per channel of s16le
	// PCM. The returned frame may be overwritten by the next call.
	EncodeBytes(pcm []byte, frameSize int) (opus.Frame, error)
	// Lookahead returns the algorithmic delay in samples per channel.
	Lookahead() (int, error)
	Close()
}

// NativeParams are the settings a native encoder is created with.
type NativeParams struct {
	SampleRate  int
	Channels    int
	Application opus.Application
	// MaxPacketSize caps the size of one encoded packet.
	MaxPacketSize int
	// Bitrate in bits per second; 0 leaves the codec default.
	Bitrate int
	// Complexity 0-10; negative leaves the codec default.
	Complexity int
}

// NativeFactory creates the native encoder on first use.
type NativeFactory func(NativeParams) (Native, error)

var _ Native = (*opus.Encoder)(nil)

// NewNative creates a libopus encoder from p.
func NewNative(p NativeParams) (Native, error) {
	enc, err := opus.NewEncoder(p.SampleRate, p.Channels, p.Application)
	if err != nil {
		return nil, err
	}
	if err := enc.SetMaxPacketSize(p.MaxPacketSize); err != nil {
		enc.Close()
		return nil, err
	}
	if p.Bitrate > 0 {
		if err := enc.SetBitrate(p.Bitrate); err != nil {
			enc.Close()
			return nil, err
		}
	}
	if p.Complexity >= 0 {
		if err := enc.SetComplexity(p.Complexity); err != nil {
			enc.Close()
			return nil, err
		}
	}
	return enc, nil
}

// nativeMessage extracts the codec library's error string.
func nativeMessage(err error) string {
	var oe *opus.Error
	if errors.As(err, &oe) {
		return oe.Msg
	}
	return err.Error()
}
