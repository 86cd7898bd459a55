package binary

import (
	"bytes"
	"errors"
	"testing"
)

func TestReaderFixedWidth(t *testing.T) {
	data := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x34, 0xFF, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewReader(data)

	magic, err := r.ReadU4()
	if err != nil {
		t.Fatalf("ReadU4: %v", err)
	}
	if magic != 0xCAFEBABE {
		t.Errorf("ReadU4: got 0x%x", magic)
	}

	major, err := r.ReadU2()
	if err != nil {
		t.Fatalf("ReadU2: %v", err)
	}
	if major != 52 {
		t.Errorf("ReadU2: got %d, want 52", major)
	}

	s, err := r.ReadS1()
	if err != nil {
		t.Fatalf("ReadS1: %v", err)
	}
	if s != -1 {
		t.Errorf("ReadS1: got %d, want -1", s)
	}

	v, err := r.ReadU8()
	if err != nil {
		t.Fatalf("ReadU8: %v", err)
	}
	if v != 0x0102030405060708 {
		t.Errorf("ReadU8: got 0x%x", v)
	}

	if r.Position() != len(data) || r.Len() != 0 {
		t.Errorf("position %d, len %d", r.Position(), r.Len())
	}

	if _, err := r.ReadU1(); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestReaderBytesAndSkip(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})

	if err := r.Skip(1); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{2, 3, 4}) {
		t.Errorf("ReadBytes: got %v", got)
	}
	if _, err := r.ReadBytes(2); err == nil {
		t.Error("expected error reading past end")
	}
	if err := r.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if b, _ := r.ReadU1(); b != 1 {
		t.Errorf("after Seek: got %d", b)
	}
	if err := r.Seek(9); err == nil {
		t.Error("expected error seeking past end")
	}
}

func TestModifiedUTF8RoundTrip(t *testing.T) {
	tests := []string{
		"",
		"java/lang/Object",
		"with\x00nul",
		"café",
		"中文",
		"emoji \U0001F600",
	}

	for _, s := range tests {
		w := NewWriter()
		w.WriteModifiedUTF8(s)
		enc := w.Bytes()
		if bytes.IndexByte(enc[2:], 0) >= 0 {
			t.Errorf("%q: encoding contains raw NUL", s)
		}
		got, err := NewReader(enc).ReadModifiedUTF8()
		if err != nil {
			t.Fatalf("%q: decode: %v", s, err)
		}
		if got != s {
			t.Errorf("round trip: got %q, want %q", got, s)
		}
	}
}

func TestModifiedUTF8Supplementary(t *testing.T) {
	enc := EncodeModifiedUTF8("\U0001F600")
	if len(enc) != 6 {
		t.Errorf("supplementary char should take 6 bytes, got %d", len(enc))
	}
}

func TestModifiedUTF8Invalid(t *testing.T) {
	tests := [][]byte{
		{0x00},
		{0xC3},
		{0xE4, 0xB8},
		{0xF0, 0x9F, 0x98, 0x80},
	}
	for _, data := range tests {
		if _, err := DecodeModifiedUTF8(data); !errors.Is(err, ErrBadUTF8) {
			t.Errorf("%x: expected ErrBadUTF8, got %v", data, err)
		}
	}
}

func TestWriterFixedWidth(t *testing.T) {
	w := NewWriter()
	w.U1(0x01)
	w.U2(0x0203)
	w.U4(0x04050607)
	w.U8(0x08090A0B0C0D0E0F)
	w.WriteBytes([]byte{0x10})

	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("got %x, want %x", w.Bytes(), want)
	}
	if w.Len() != len(want) {
		t.Errorf("Len: got %d", w.Len())
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, _ = r.ReadU1()
	err := r.WrapError("constant pool", ErrTruncated)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected ParseError")
	}
	if pe.Position != 1 || pe.Section != "constant pool" {
		t.Errorf("got %+v", pe)
	}
	if !errors.Is(err, ErrTruncated) {
		t.Error("ParseError should unwrap to cause")
	}
}
