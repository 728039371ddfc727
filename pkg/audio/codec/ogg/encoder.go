package ogg

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder operations reported in an *Error.
const (
	OpPacketIn = "packet-in"
	OpPageOut  = "page-out"
	OpFlush    = "flush"
	OpWrite    = "write"
)

// Error reports which step of page production failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ogg: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RandomSerialNo returns a uniformly random stream serial number.
func RandomSerialNo() (int32, error) {
	var serialNo int32
	if err := binary.Read(rand.Reader, binary.LittleEndian, &serialNo); err != nil {
		return 0, fmt.Errorf("ogg: serial number: %w", err)
	}
	return serialNo, nil
}

// Encoder writes the pages of one logical stream to an io.Writer. Every page
// is written header first, then body, as soon as libogg releases it.
type Encoder struct {
	w      io.Writer
	stream *StreamState
	page   Page
	pages  int64
	bytes  int64
}

// NewEncoder creates an Ogg encoder for the stream with the given serial
// number.
func NewEncoder(w io.Writer, serialNo int32) (*Encoder, error) {
	stream, err := NewStreamState(serialNo)
	if err != nil {
		return nil, err
	}
	return &Encoder{w: w, stream: stream}, nil
}

// SerialNo returns the stream serial number.
func (e *Encoder) SerialNo() int32 {
	return e.stream.SerialNo()
}

// Pages returns the number of pages written so far.
func (e *Encoder) Pages() int64 {
	return e.pages
}

// Bytes returns the number of bytes written so far.
func (e *Encoder) Bytes() int64 {
	return e.bytes
}

// WritePacket submits p to the stream and writes every page that became
// complete as a result. p may be reused once WritePacket returns.
func (e *Encoder) WritePacket(p *Packet) error {
	if err := e.stream.PacketIn(p); err != nil {
		return &Error{Op: OpPacketIn, Err: err}
	}
	for {
		ok, err := e.stream.PageOut(&e.page)
		if err != nil {
			return &Error{Op: OpPageOut, Err: err}
		}
		if !ok {
			return nil
		}
		if err := e.writePage(); err != nil {
			return err
		}
	}
}

// Flush forces any buffered packets into pages and writes them. Packets
// submitted before Flush never share a page with packets submitted after.
func (e *Encoder) Flush() error {
	for {
		ok, err := e.stream.Flush(&e.page)
		if err != nil {
			return &Error{Op: OpFlush, Err: err}
		}
		if !ok {
			return nil
		}
		if err := e.writePage(); err != nil {
			return err
		}
	}
}

func (e *Encoder) writePage() error {
	n, err := e.page.WriteTo(e.w)
	e.bytes += n
	if err != nil {
		return &Error{Op: OpWrite, Err: err}
	}
	e.pages++
	return nil
}

// Close flushes and releases the native stream state. The underlying writer
// is not closed. Calling Close again is a no-op.
func (e *Encoder) Close() error {
	if e.stream.cleared.Load() {
		return nil
	}
	err := e.Flush()
	e.stream.Clear()
	return err
}
