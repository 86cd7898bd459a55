package binary

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// Writer provides buffered writing utilities for class file encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// U1 writes a single byte.
func (w *Writer) U1(b byte) {
	w.buf.WriteByte(b)
}

// U2 writes a big-endian uint16.
func (w *Writer) U2(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.buf.Write(buf[:])
}

// U4 writes a big-endian uint32.
func (w *Writer) U4(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// U8 writes a big-endian uint64.
func (w *Writer) U8(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// WriteModifiedUTF8 writes a u2-length-prefixed modified UTF-8 string.
func (w *Writer) WriteModifiedUTF8(s string) {
	data := EncodeModifiedUTF8(s)
	w.U2(uint16(len(data)))
	w.buf.Write(data)
}

// EncodeModifiedUTF8 is the inverse of DecodeModifiedUTF8.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}
