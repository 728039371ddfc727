package oggopus

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/haivivi/oggvoice/pkg/audio/codec/ogg"
)

// Reader walks the first Opus stream of an Ogg container. Headers are
// parsed by NewReader; audio packets are read with Packets.
type Reader struct {
	Head     OpusHead
	Tags     OpusTags
	SerialNo int32

	next    func() (*ogg.PacketInfo, error, bool)
	stop    func()
	closer  io.Closer
	eos     bool
	resyncs int
}

// ReadFile opens path and parses its Opus headers. Close releases the file.
func ReadFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the OpusHead and OpusTags packets from r. Streams of
// other codecs multiplexed before the Opus stream are skipped.
func NewReader(r io.Reader) (*Reader, error) {
	next, stop := iter.Pull2(ogg.ReadPackets(r))
	rd := &Reader{next: next, stop: stop}
	if err := rd.readHeaders(); err != nil {
		stop()
		return nil, err
	}
	return rd, nil
}

func (r *Reader) readHeaders() error {
	for {
		p, err := r.pull()
		if err != nil {
			return err
		}
		if !p.BOS {
			continue
		}
		head, err := ParseOpusHead(p.Data)
		if err != nil {
			continue
		}
		r.Head = head
		r.SerialNo = p.SerialNo
		break
	}
	for {
		p, err := r.pull()
		if err != nil {
			return err
		}
		if p.SerialNo != r.SerialNo {
			continue
		}
		tags, err := ParseOpusTags(p.Data)
		if err != nil {
			return err
		}
		r.Tags = tags
		return nil
	}
}

func (r *Reader) pull() (*ogg.PacketInfo, error) {
	for {
		p, err, ok := r.next()
		if !ok {
			return nil, fmt.Errorf("%w: missing OpusHead or OpusTags", ErrInvalidHeader)
		}
		if errors.Is(err, ogg.ErrHole) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r.resyncs = p.Resyncs
		return p, nil
	}
}

// Packets yields the audio packets of the stream in order, stopping after
// the end-of-stream packet. A gap in the stream is yielded as ogg.ErrHole
// and reading continues.
func (r *Reader) Packets() iter.Seq2[*ogg.PacketInfo, error] {
	return func(yield func(*ogg.PacketInfo, error) bool) {
		for !r.eos {
			p, err, ok := r.next()
			if !ok {
				return
			}
			if err != nil {
				if !yield(nil, err) || !errors.Is(err, ogg.ErrHole) {
					return
				}
				continue
			}
			r.resyncs = p.Resyncs
			if p.SerialNo != r.SerialNo {
				continue
			}
			r.eos = p.EOS
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Resyncs returns how many runs of bytes that were not Ogg pages have been
// skipped so far.
func (r *Reader) Resyncs() int {
	return r.resyncs
}

// Close stops reading and closes the file opened by ReadFile.
func (r *Reader) Close() error {
	r.stop()
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
