package resampler

import "io"

// frameReader returns whole PCM frames only. A partial frame left over from
// one Read is carried into the next.
type frameReader struct {
	r       io.Reader
	size    int
	carry   []byte
	carried int
}

func newFrameReader(r io.Reader, frameBytes int) *frameReader {
	return &frameReader{r: r, size: frameBytes, carry: make([]byte, frameBytes-1)}
}

// Read fills p with a multiple of the frame size. It returns
// io.ErrShortBuffer if p cannot hold one frame and io.ErrUnexpectedEOF when
// the input ends in the middle of a frame.
func (fr *frameReader) Read(p []byte) (int, error) {
	if len(p) < fr.size {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fr.size*fr.size]
	n := copy(p, fr.carry[:fr.carried])
	fr.carried = 0

	rn, err := fr.r.Read(p[n:])
	n += rn
	tail := n % fr.size
	if err != nil {
		if tail != 0 && err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	if tail != 0 {
		n -= tail
		fr.carried = copy(fr.carry, p[n:n+tail])
	}
	return n, nil
}
