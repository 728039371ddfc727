package ogg

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSyncState(t *testing.T) {
	sync, err := NewSyncState()
	if err != nil {
		t.Fatal(err)
	}
	defer sync.Clear()

	// Not valid Ogg, just testing the interface.
	data := []byte("test data")
	n, err := sync.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}

	var page Page
	err = sync.PageOut(&page)
	if err != ErrNeedMore && err != ErrSync {
		t.Errorf("PageOut returned unexpected error: %v", err)
	}
}

func TestStreamState(t *testing.T) {
	stream, err := NewStreamState(12345)
	if err != nil {
		t.Fatal(err)
	}

	if stream.SerialNo() != 12345 {
		t.Errorf("SerialNo() = %d, want 12345", stream.SerialNo())
	}

	var page Page
	ok, err := stream.PageOut(&page)
	if ok || err != nil {
		t.Errorf("PageOut on empty stream = %v, %v", ok, err)
	}
	ok, err = stream.Flush(&page)
	if ok || err != nil {
		t.Errorf("Flush on empty stream = %v, %v", ok, err)
	}

	stream.Clear()
	stream.Clear()
	if err := stream.PacketIn(&Packet{Data: []byte("x")}); !errors.Is(err, ErrCleared) {
		t.Errorf("PacketIn after Clear = %v, want ErrCleared", err)
	}
	if _, err := stream.Flush(&page); !errors.Is(err, ErrCleared) {
		t.Errorf("Flush after Clear = %v, want ErrCleared", err)
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	packets := [][]byte{
		[]byte("header packet"),
		[]byte("data packet 1"),
		[]byte("data packet 2"),
		[]byte("final packet"),
	}

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, 777)
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}

	var p Packet
	for i, data := range packets {
		p.Data = data
		p.GranulePos = int64(i * 100)
		p.PacketNo = int64(i)
		p.BOS = i == 0
		p.EOS = i == len(packets)-1
		if err := enc.WritePacket(&p); err != nil {
			t.Fatalf("WritePacket %d failed: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Encoder Close failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if enc.Bytes() != int64(buf.Len()) {
		t.Errorf("Bytes() = %d, buffer has %d", enc.Bytes(), buf.Len())
	}
	if enc.Pages() == 0 {
		t.Error("Pages() = 0")
	}

	var got []*PacketInfo
	for info, err := range ReadPackets(&buf) {
		if err != nil {
			t.Fatalf("ReadPackets: %v", err)
		}
		got = append(got, info)
	}
	if len(got) != len(packets) {
		t.Fatalf("got %d packets, want %d", len(got), len(packets))
	}
	// Only the packet that ends a page carries a granule position, and the
	// first page of a stream always has granule 0.
	wantGranule := []int64{0, -1, -1, 300}
	for i, info := range got {
		if !bytes.Equal(info.Data, packets[i]) {
			t.Errorf("packet %d: got %q, want %q", i, info.Data, packets[i])
		}
		if info.SerialNo != 777 {
			t.Errorf("packet %d: serial %d", i, info.SerialNo)
		}
		if info.PacketNo != int64(i) {
			t.Errorf("packet %d: packetno %d", i, info.PacketNo)
		}
		if info.GranulePos != wantGranule[i] {
			t.Errorf("packet %d: granule %d, want %d", i, info.GranulePos, wantGranule[i])
		}
	}
	if !got[0].BOS || got[len(got)-1].EOS != true {
		t.Error("BOS/EOS flags not preserved")
	}
}

func TestEncoderFlushSeparatesPages(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, 1)
	if err != nil {
		t.Fatal(err)
	}

	p := Packet{Data: []byte("first"), BOS: true}
	if err := enc.WritePacket(&p); err != nil {
		t.Fatal(err)
	}
	p = Packet{Data: []byte("second"), PacketNo: 1}
	if err := enc.WritePacket(&p); err != nil {
		t.Fatal(err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}
	// libogg always puts the first packet of a stream alone on page 0.
	if enc.Pages() != 2 {
		t.Fatalf("Pages() after flush = %d, want 2", enc.Pages())
	}
	p = Packet{Data: []byte("third"), PacketNo: 2, GranulePos: 10, EOS: true}
	if err := enc.WritePacket(&p); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	pages := map[int64]int{}
	for info, err := range ReadPackets(&buf) {
		if err != nil {
			t.Fatal(err)
		}
		pages[info.PageNo]++
	}
	if diff := cmp.Diff(map[int64]int{0: 1, 1: 1, 2: 1}, pages); diff != "" {
		t.Errorf("packets per page mismatch (-want +got):\n%s", diff)
	}
}

type failWriter struct{ after int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestEncoderWriteError(t *testing.T) {
	enc, err := NewEncoder(&failWriter{}, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()

	// The first packet is paged out immediately.
	p := Packet{Data: []byte("head"), BOS: true}
	err = enc.WritePacket(&p)
	var oe *Error
	if !errors.As(err, &oe) || oe.Op != OpWrite {
		t.Fatalf("WritePacket error = %v, want write *Error", err)
	}
	if enc.Pages() != 0 {
		t.Errorf("Pages() = %d after a failed write", enc.Pages())
	}
}

func TestPageHelpers(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf, 4242)
	if err != nil {
		t.Fatal(err)
	}
	p := Packet{Data: []byte("test"), GranulePos: 100, BOS: true, EOS: true}
	if err := enc.WritePacket(&p); err != nil {
		t.Fatal(err)
	}
	enc.Close()
	size := buf.Len()

	dec, err := NewDecoder(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	page, err := dec.ReadPage()
	if err != nil {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if page.Len() != size {
		t.Errorf("Len() = %d, want %d", page.Len(), size)
	}
	if page.SerialNo() != 4242 || page.PageNo() != 0 {
		t.Errorf("serial=%d pageno=%d", page.SerialNo(), page.PageNo())
	}
	if !page.IsBOS() || !page.IsEOS() {
		t.Errorf("flags bos=%v eos=%v", page.IsBOS(), page.IsEOS())
	}
	// libogg writes granule 0 on the first page of a stream.
	if page.GranulePos() != 0 || page.Packets() != 1 {
		t.Errorf("granule=%d packets=%d", page.GranulePos(), page.Packets())
	}

	var out bytes.Buffer
	n, err := page.WriteTo(&out)
	if err != nil || n != int64(size) {
		t.Errorf("WriteTo = %d, %v", n, err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("OggS")) || !bytes.HasSuffix(out.Bytes(), []byte("test")) {
		t.Errorf("page bytes = %q", out.Bytes())
	}

	if _, err := dec.ReadPage(); err != io.EOF {
		t.Errorf("ReadPage at end = %v, want io.EOF", err)
	}
}

func TestReadPacketsGarbage(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("not an ogg stream at all")
	n := 0
	for _, err := range ReadPackets(&buf) {
		if err != nil {
			t.Fatalf("ReadPackets: %v", err)
		}
		n++
	}
	if n != 0 {
		t.Errorf("got %d packets from garbage", n)
	}
}

func TestReadPacketsResync(t *testing.T) {
	var stream bytes.Buffer
	enc, err := NewEncoder(&stream, 9)
	if err != nil {
		t.Fatal(err)
	}
	for i, data := range []string{"first", "second"} {
		p := Packet{Data: []byte(data), PacketNo: int64(i), BOS: i == 0, EOS: i == 1}
		if err := enc.WritePacket(&p); err != nil {
			t.Fatal(err)
		}
		if err := enc.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	pages := stream.Bytes()

	clean := readInfos(t, bytes.NewReader(pages))
	if len(clean) != 2 {
		t.Fatalf("clean stream: got %d packets", len(clean))
	}
	if clean[1].Resyncs != 0 {
		t.Errorf("clean stream resyncs = %d", clean[1].Resyncs)
	}

	// Junk before the first page and between the two pages.
	split := bytes.Index(pages[4:], []byte("OggS")) + 4
	var dirty bytes.Buffer
	dirty.WriteString("junk before the stream")
	dirty.Write(pages[:split])
	dirty.WriteString("junk between pages")
	dirty.Write(pages[split:])

	got := readInfos(t, &dirty)
	if len(got) != 2 || string(got[0].Data) != "first" || string(got[1].Data) != "second" {
		t.Fatalf("packets after resync: %+v", got)
	}
	if got[0].Resyncs == 0 || got[1].Resyncs <= got[0].Resyncs {
		t.Errorf("resyncs = %d, %d; want both junk runs counted", got[0].Resyncs, got[1].Resyncs)
	}
}

func readInfos(t *testing.T, r io.Reader) []*PacketInfo {
	t.Helper()
	var out []*PacketInfo
	for info, err := range ReadPackets(r) {
		if err != nil {
			t.Fatalf("ReadPackets: %v", err)
		}
		out = append(out, info)
	}
	return out
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestReadPacketsReaderError(t *testing.T) {
	var gotErr error
	for _, err := range ReadPackets(errReader{}) {
		gotErr = err
	}
	if gotErr == nil || gotErr.Error() != "boom" {
		t.Errorf("err = %v, want boom", gotErr)
	}
}

func TestRandomSerialNo(t *testing.T) {
	seen := map[int32]bool{}
	for range 8 {
		s, err := RandomSerialNo()
		if err != nil {
			t.Fatal(err)
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		t.Error("serial numbers are not random")
	}
}
