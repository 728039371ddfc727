package opus

/*
#cgo pkg-config: opus
#include <opus.h>
*/
import "C"
import (
	"fmt"
	"strings"
)

// Application selects the libopus coding mode.
type Application int

const (
	// ApplicationVoIP gives best quality at a given bitrate for voice signals.
	ApplicationVoIP Application = iota + 1

	// ApplicationAudio gives best quality at a given bitrate for most non-voice signals.
	ApplicationAudio

	// ApplicationRestrictedLowdelay configures the minimum possible coding delay.
	ApplicationRestrictedLowdelay
)

// ParseApplication parses "voip", "audio" or "restricted_lowdelay".
func ParseApplication(s string) (Application, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voip":
		return ApplicationVoIP, nil
	case "audio":
		return ApplicationAudio, nil
	case "restricted_lowdelay", "lowdelay":
		return ApplicationRestrictedLowdelay, nil
	}
	return 0, fmt.Errorf("opus: unknown application %q", s)
}

// String returns the name accepted by ParseApplication.
func (a Application) String() string {
	switch a {
	case ApplicationVoIP:
		return "voip"
	case ApplicationAudio:
		return "audio"
	case ApplicationRestrictedLowdelay:
		return "restricted_lowdelay"
	}
	return fmt.Sprintf("Application(%d)", int(a))
}

func (a Application) native() int {
	switch a {
	case ApplicationVoIP:
		return int(C.OPUS_APPLICATION_VOIP)
	case ApplicationAudio:
		return int(C.OPUS_APPLICATION_AUDIO)
	case ApplicationRestrictedLowdelay:
		return int(C.OPUS_APPLICATION_RESTRICTED_LOWDELAY)
	}
	// libopus rejects this with OPUS_BAD_ARG.
	return -1
}

// Library describes the linked libopus.
type Library struct {
	Version string
}

// Load checks that libopus is usable by creating and destroying a small
// encoder. It reports the library version on success.
func Load() (Library, error) {
	var code C.int
	enc := C.opus_encoder_create(48000, 1, C.OPUS_APPLICATION_AUDIO, &code)
	if code != C.OPUS_OK {
		return Library{}, fmt.Errorf("opus: library unusable: %w", newError("encoder create", code))
	}
	C.opus_encoder_destroy(enc)
	return Library{Version: C.GoString(C.opus_get_version_string())}, nil
}
