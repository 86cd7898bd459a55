package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrTruncated is returned when a read runs past the end of the input.
var ErrTruncated = errors.New("unexpected end of class data")

// ErrBadUTF8 is returned for byte sequences that are not modified UTF-8.
var ErrBadUTF8 = errors.New("invalid modified UTF-8")

// Reader reads big-endian class file primitives from a byte slice with position tracking.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a new Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Seek moves to an absolute position.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return r.wrapError(ErrTruncated)
	}
	r.pos = pos
	return nil
}

// ReadU1 reads a single unsigned byte.
func (r *Reader) ReadU1() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadU2 reads a big-endian uint16.
func (r *Reader) ReadU2() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU4 reads a big-endian uint32.
func (r *Reader) ReadU4() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU8 reads a big-endian uint64.
func (r *Reader) ReadU8() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, r.wrapError(ErrTruncated)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadS1 reads a signed byte.
func (r *Reader) ReadS1() (int8, error) {
	v, err := r.ReadU1()
	return int8(v), err
}

// ReadS2 reads a big-endian int16.
func (r *Reader) ReadS2() (int16, error) {
	v, err := r.ReadU2()
	return int16(v), err
}

// ReadS4 reads a big-endian int32.
func (r *Reader) ReadS4() (int32, error) {
	v, err := r.ReadU4()
	return int32(v), err
}

// ReadBytes reads exactly n bytes. The result aliases the input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.wrapError(ErrTruncated)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances over n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return r.wrapError(ErrTruncated)
	}
	r.pos += n
	return nil
}

// ReadModifiedUTF8 reads a u2-length-prefixed modified UTF-8 string.
func (r *Reader) ReadModifiedUTF8() (string, error) {
	n, err := r.ReadU2()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	s, err := DecodeModifiedUTF8(data)
	if err != nil {
		return "", r.wrapError(err)
	}
	return s, nil
}

// DecodeModifiedUTF8 decodes the class file string encoding: NUL as two bytes,
// supplementary characters as surrogate pairs of three bytes each.
func DecodeModifiedUTF8(data []byte) (string, error) {
	ascii := true
	for _, b := range data {
		if b == 0 || b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(data), nil
	}

	units := make([]uint16, 0, len(data))
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == 0:
			return "", ErrBadUTF8
		case b < 0x80:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(data) || data[i+1]&0xC0 != 0x80 {
				return "", ErrBadUTF8
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(data[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(data) || data[i+1]&0xC0 != 0x80 || data[i+2]&0xC0 != 0x80 {
				return "", ErrBadUTF8
			}
			units = append(units, uint16(b&0x0F)<<12|uint16(data[i+1]&0x3F)<<6|uint16(data[i+2]&0x3F))
			i += 3
		default:
			return "", ErrBadUTF8
		}
	}
	return string(utf16.Decode(units)), nil
}

func (r *Reader) wrapError(err error) error {
	return fmt.Errorf("at position %d: %w", r.pos, err)
}

// ParseError represents an error during class file parsing with position information.
type ParseError struct {
	Err      error
	Section  string
	Position int
}

func (e *ParseError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("classfile: %s at position %d: %v", e.Section, e.Position, e.Err)
	}
	return fmt.Sprintf("classfile: at position %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// WrapError creates a ParseError with the current position.
func (r *Reader) WrapError(section string, err error) error {
	return &ParseError{
		Position: r.pos,
		Section:  section,
		Err:      err,
	}
}
