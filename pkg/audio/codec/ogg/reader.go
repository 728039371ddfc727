package ogg

import (
	"errors"
	"io"
	"iter"
)

// PacketInfo is a packet read back from an Ogg stream together with the
// page it completed on.
type PacketInfo struct {
	Packet
	SerialNo int32
	// PageNo is the sequence number of the page on which the packet ends.
	PageNo int64
	// PageGranule is the granule position of that page.
	PageGranule int64
	// Resyncs counts the times the reader lost page capture and skipped
	// bytes before this packet's page.
	Resyncs int
}

// ReadPackets reads every packet from an Ogg container, in stream order.
// The caller is responsible for closing the underlying io.Reader.
//
// Multiplexed and chained streams are supported; SerialNo identifies the
// logical stream each packet belongs to. A gap in a stream is reported as
// ErrHole and reading continues with the next packet.
//
// Example:
//
//	for pkt, err := range ogg.ReadPackets(file) {
//	    if err != nil {
//	        return err
//	    }
//	    // process pkt.Data
//	}
func ReadPackets(r io.Reader) iter.Seq2[*PacketInfo, error] {
	return func(yield func(*PacketInfo, error) bool) {
		decoder, err := NewDecoder(r)
		if err != nil {
			yield(nil, err)
			return
		}
		defer decoder.Close()

		streams := make(map[int32]*StreamState)
		defer func() {
			for _, s := range streams {
				s.Clear()
			}
		}()

		for {
			page, err := decoder.ReadPage()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}

			serialNo := page.SerialNo()
			stream := streams[serialNo]
			if page.IsBOS() && stream != nil {
				// A chained stream reused the serial number.
				stream.Clear()
				stream = nil
			}
			if stream == nil {
				stream, err = NewStreamState(serialNo)
				if err != nil {
					yield(nil, err)
					return
				}
				streams[serialNo] = stream
			}

			if err := stream.PageIn(page); err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}

			pageNo, granule := page.PageNo(), page.GranulePos()
			for {
				info := &PacketInfo{SerialNo: serialNo, PageNo: pageNo, PageGranule: granule, Resyncs: decoder.Resyncs()}
				err := stream.PacketOut(&info.Packet)
				if err == ErrNoPacket {
					break
				}
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}
				if !yield(info, nil) {
					return
				}
			}
			if page.IsEOS() {
				// The logical stream is complete; its serial number may be
				// reused by a later chained stream.
				stream.Clear()
				delete(streams, serialNo)
			}
		}
	}
}
