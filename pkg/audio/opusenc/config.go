package opusenc

// Config is the full encoder configuration, as stored in CLI profiles.
type Config struct {
	Channels    int     `json:"channels" yaml:"channels"`
	SampleRate  int     `json:"sample_rate" yaml:"sample_rate"`
	FrameMillis float64 `json:"frame_ms" yaml:"frame_ms"`
	Application string  `json:"application" yaml:"application"`

	Bitrate          int  `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	Complexity       *int `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	MaxBytesPerFrame int  `json:"max_bytes_per_frame,omitempty" yaml:"max_bytes_per_frame,omitempty"`
}

// DefaultConfig is 48 kHz mono audio in 20 ms frames.
func DefaultConfig() Config {
	return Config{
		Channels:    1,
		SampleRate:  48000,
		FrameMillis: 20,
		Application: "audio",
	}
}

// NewFromConfig creates an Encoder and applies c to it.
func NewFromConfig(c Config, opts ...Option) (*Encoder, error) {
	e := New(opts...)
	if err := c.Apply(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply calls the setters of e for every field of c. Zero optional fields
// are skipped.
func (c Config) Apply(e *Encoder) error {
	if err := e.SetChannels(c.Channels); err != nil {
		return err
	}
	if err := e.SetSampleRate(c.SampleRate); err != nil {
		return err
	}
	if err := e.SetFrameSize(c.FrameMillis); err != nil {
		return err
	}
	if err := e.SetApplication(c.Application); err != nil {
		return err
	}
	if c.Bitrate != 0 {
		if err := e.SetBitrate(c.Bitrate); err != nil {
			return err
		}
	}
	if c.Complexity != nil {
		if err := e.SetComplexity(*c.Complexity); err != nil {
			return err
		}
	}
	if c.MaxBytesPerFrame != 0 {
		if err := e.SetMaxBytesPerFrame(c.MaxBytesPerFrame); err != nil {
			return err
		}
	}
	return nil
}
