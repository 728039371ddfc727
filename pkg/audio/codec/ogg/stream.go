package ogg

/*
#include <ogg/ogg.h>
#include <stdlib.h>
#include <string.h>

static ogg_stream_state* alloc_stream_state() {
    return (ogg_stream_state*)calloc(1, sizeof(ogg_stream_state));
}

static void free_stream_state(ogg_stream_state *state) {
    if (state) {
        ogg_stream_clear(state);
        free(state);
    }
}

static long get_packet_bytes(ogg_packet *packet) {
    return packet->bytes;
}

static void copy_packet_data(ogg_packet *packet, unsigned char *dst) {
    memcpy(dst, packet->packet, packet->bytes);
}
*/
import "C"
import (
	"errors"
	"runtime"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrStream indicates libogg rejected an operation or the stream state
	// is internally inconsistent.
	ErrStream = errors.New("ogg: stream error")
	// ErrNoPacket indicates no packet is available.
	ErrNoPacket = errors.New("ogg: no packet available")
	// ErrHole indicates a gap in the data (packet loss).
	ErrHole = errors.New("ogg: hole in data")
	// ErrCleared is returned when a stream state is used after Clear.
	ErrCleared = errors.New("ogg: stream state cleared")
)

// StreamState manages the encoding/decoding of a logical Ogg bitstream.
// Must call Clear() when done to release resources.
//
// A StreamState is not safe for concurrent use.
type StreamState struct {
	state    *C.ogg_stream_state
	serialNo int32
	packet   C.ogg_packet
	cleared  atomic.Bool
	cleanup  runtime.Cleanup
}

// freeStreamState releases C resources.
func freeStreamState(ptr uintptr) {
	C.free_stream_state((*C.ogg_stream_state)(unsafe.Pointer(ptr)))
}

// NewStreamState creates a new stream state with the given serial number.
func NewStreamState(serialNo int32) (*StreamState, error) {
	state := C.alloc_stream_state()
	if state == nil {
		return nil, errors.New("ogg: failed to allocate stream state")
	}
	if C.ogg_stream_init(state, C.int(serialNo)) != 0 {
		C.free(unsafe.Pointer(state))
		return nil, ErrStream
	}
	s := &StreamState{
		state:    state,
		serialNo: serialNo,
	}
	s.cleanup = runtime.AddCleanup(s, freeStreamState, uintptr(unsafe.Pointer(state)))
	return s, nil
}

// Clear releases resources. Safe to call multiple times.
func (s *StreamState) Clear() {
	if s.cleared.CompareAndSwap(false, true) {
		s.cleanup.Stop()
		C.free_stream_state(s.state)
		s.state = nil
	}
}

// SerialNo returns the stream serial number.
func (s *StreamState) SerialNo() int32 {
	return s.serialNo
}

func (s *StreamState) check() error {
	if s.state == nil {
		return ErrCleared
	}
	if C.ogg_stream_check(s.state) != 0 {
		return ErrStream
	}
	return nil
}

// --- Encoding ---

// PacketIn submits a packet for page generation. libogg copies the payload
// into its own buffers, so p may be reused as soon as PacketIn returns.
func (s *StreamState) PacketIn(p *Packet) error {
	if s.state == nil {
		return ErrCleared
	}

	// The payload has to live in C memory while libogg reads it.
	var cData unsafe.Pointer
	if len(p.Data) > 0 {
		cData = C.malloc(C.size_t(len(p.Data)))
		if cData == nil {
			return errors.New("ogg: malloc failed")
		}
		defer C.free(cData)
		C.memcpy(cData, unsafe.Pointer(&p.Data[0]), C.size_t(len(p.Data)))
	}

	s.packet = C.ogg_packet{}
	s.packet.packet = (*C.uchar)(cData)
	s.packet.bytes = C.long(len(p.Data))
	s.packet.granulepos = C.ogg_int64_t(p.GranulePos)
	s.packet.packetno = C.ogg_int64_t(p.PacketNo)
	if p.BOS {
		s.packet.b_o_s = 1
	}
	if p.EOS {
		s.packet.e_o_s = 1
	}

	result := C.ogg_stream_packetin(s.state, &s.packet)
	s.packet.packet = nil
	if result != 0 {
		return ErrStream
	}
	return nil
}

// PageOut fills page with the next complete page, if libogg has one ready.
// It returns false with a nil error when no page is ready. The page memory
// belongs to the stream and is overwritten by the next PageOut or Flush.
func (s *StreamState) PageOut(page *Page) (bool, error) {
	if s.state == nil {
		return false, ErrCleared
	}
	if C.ogg_stream_pageout(s.state, &page.page) != 0 {
		return true, nil
	}
	return false, s.check()
}

// Flush forces buffered packets into page even if it is not full. It returns
// false with a nil error when nothing is buffered.
func (s *StreamState) Flush(page *Page) (bool, error) {
	if s.state == nil {
		return false, ErrCleared
	}
	if C.ogg_stream_flush(s.state, &page.page) != 0 {
		return true, nil
	}
	return false, s.check()
}

// --- Decoding ---

// PageIn submits a page to the stream for packetization.
func (s *StreamState) PageIn(page *Page) error {
	if s.state == nil {
		return ErrCleared
	}
	if C.ogg_stream_pagein(s.state, &page.page) != 0 {
		return ErrStream
	}
	return nil
}

// PacketOut extracts the next packet from the stream into p. The payload is
// copied into p.Data.
//
// Returns ErrNoPacket if no complete packet is available and ErrHole if
// there's a gap in the data.
func (s *StreamState) PacketOut(p *Packet) error {
	if s.state == nil {
		return ErrCleared
	}
	switch C.ogg_stream_packetout(s.state, &s.packet) {
	case 1:
	case 0:
		return ErrNoPacket
	default:
		return ErrHole
	}

	n := int(C.get_packet_bytes(&s.packet))
	p.Data = make([]byte, n)
	if n > 0 {
		C.copy_packet_data(&s.packet, (*C.uchar)(unsafe.Pointer(&p.Data[0])))
	}
	p.GranulePos = int64(s.packet.granulepos)
	p.PacketNo = int64(s.packet.packetno)
	p.BOS = s.packet.b_o_s != 0
	p.EOS = s.packet.e_o_s != 0
	s.packet = C.ogg_packet{}
	return nil
}
