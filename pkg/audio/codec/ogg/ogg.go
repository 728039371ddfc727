// Package ogg provides Go bindings for libogg.
//
// libogg is the reference implementation of the Ogg container format.
// This package provides low-level access to Ogg sync, stream, page and packet
// operations, a page encoder that drains pages into an io.Writer, and a
// packet iterator for reading streams back.
package ogg

/*
#cgo pkg-config: ogg
#include <ogg/ogg.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"io"
	"unsafe"
)

// Page represents an Ogg page. Its header and body point into memory owned
// by the StreamState or SyncState that produced it and stay valid only until
// the next call on that state.
type Page struct {
	page C.ogg_page
}

func (p *Page) header() []byte {
	if p.page.header == nil || p.page.header_len == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p.page.header)), int(p.page.header_len))
}

func (p *Page) body() []byte {
	if p.page.body == nil || p.page.body_len == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p.page.body)), int(p.page.body_len))
}

// Len returns the encoded size of the page, header plus body.
func (p *Page) Len() int {
	return int(p.page.header_len + p.page.body_len)
}

// WriteTo writes the page header followed by the page body to w without
// copying them out of libogg memory.
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.header())
	total := int64(n)
	if err != nil {
		return total, err
	}
	n, err = w.Write(p.body())
	total += int64(n)
	return total, err
}

// SerialNo returns the stream serial number.
func (p *Page) SerialNo() int32 {
	return int32(C.ogg_page_serialno(&p.page))
}

// PageNo returns the page sequence number.
func (p *Page) PageNo() int64 {
	return int64(C.ogg_page_pageno(&p.page))
}

// IsBOS returns true if this is a beginning of stream page.
func (p *Page) IsBOS() bool {
	return C.ogg_page_bos(&p.page) != 0
}

// IsEOS returns true if this is an end of stream page.
func (p *Page) IsEOS() bool {
	return C.ogg_page_eos(&p.page) != 0
}

// GranulePos returns the granule position.
func (p *Page) GranulePos() int64 {
	return int64(C.ogg_page_granulepos(&p.page))
}

// Packets returns the number of packets that end on this page.
func (p *Page) Packets() int {
	return int(C.ogg_page_packets(&p.page))
}

// Packet is one Ogg packet. The same value is meant to be reused: fill it,
// hand it to StreamState.PacketIn, then overwrite it for the next packet.
type Packet struct {
	Data       []byte
	GranulePos int64
	PacketNo   int64
	BOS        bool
	EOS        bool
}
