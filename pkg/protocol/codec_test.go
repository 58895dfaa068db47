package protocol

import (
	stderrors "errors"
	"io"
	"testing"
)

func TestEncoderDecoder(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(0x7f)
	e.WriteUvarint(300)
	e.WriteString("héllo")
	e.WriteLenBytes([]byte{1, 2, 3})
	e.WriteBool(true)
	e.WriteUint16(0xBEEF)
	e.WriteUint32(0xDEADBEEF)

	d := NewDecoder(e.Bytes())
	if b, err := d.ReadByte(); err != nil || b != 0x7f {
		t.Errorf("ReadByte() = %x, %v; want 7f", b, err)
	}
	if v, err := d.ReadUvarint(); err != nil || v != 300 {
		t.Errorf("ReadUvarint() = %d, %v; want 300", v, err)
	}
	if s, err := d.ReadString(); err != nil || s != "héllo" {
		t.Errorf("ReadString() = %q, %v; want héllo", s, err)
	}
	if b, err := d.ReadLenBytes(); err != nil || len(b) != 3 || b[2] != 3 {
		t.Errorf("ReadLenBytes() = %v, %v; want [1 2 3]", b, err)
	}
	if v, err := d.ReadBool(); err != nil || !v {
		t.Errorf("ReadBool() = %v, %v; want true", v, err)
	}
	if v, err := d.ReadUint16(); err != nil || v != 0xBEEF {
		t.Errorf("ReadUint16() = %x, %v; want beef", v, err)
	}
	if v, err := d.ReadUint32(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadUint32() = %x, %v; want deadbeef", v, err)
	}
	if err := d.Finish(); err != nil {
		t.Errorf("Finish() = %v, want nil", err)
	}
}

func TestEncoderReset(t *testing.T) {
	e := NewEncoder()
	e.WriteString("abc")
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", e.Len())
	}
}

func TestMapsAreSorted(t *testing.T) {
	a, b := NewEncoder(), NewEncoder()
	a.WriteStringMap(map[string]string{"b": "2", "a": "1", "c": "3"})
	b.WriteStringMap(map[string]string{"c": "3", "a": "1", "b": "2"})
	if string(a.Bytes()) != string(b.Bytes()) {
		t.Error("map encoding depends on iteration order")
	}

	d := NewDecoder(a.Bytes())
	m, err := d.ReadStringMap()
	if err != nil || len(m) != 3 || m["b"] != "2" {
		t.Errorf("ReadStringMap() = %v, %v", m, err)
	}

	e := NewEncoder()
	e.WriteBoolMap(nil)
	if m, err := NewDecoder(e.Bytes()).ReadBoolMap(); err != nil || m != nil {
		t.Errorf("empty ReadBoolMap() = %v, %v; want nil, nil", m, err)
	}
}

func TestDecoderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(*Decoder) error
		want error
	}{
		{
			name: "short byte",
			data: nil,
			read: func(d *Decoder) error { _, err := d.ReadByte(); return err },
			want: io.ErrUnexpectedEOF,
		},
		{
			name: "varint overflow",
			data: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			read: func(d *Decoder) error { _, err := d.ReadUvarint(); return err },
			want: ErrVarintOverflow,
		},
		{
			name: "string past end",
			data: []byte{0x05, 'a', 'b'},
			read: func(d *Decoder) error { _, err := d.ReadString(); return err },
			want: io.ErrUnexpectedEOF,
		},
		{
			name: "invalid bool",
			data: []byte{0x02},
			read: func(d *Decoder) error { _, err := d.ReadBool(); return err },
			want: ErrInvalidBool,
		},
		{
			name: "huge count",
			data: []byte{0xff, 0xff, 0xff, 0x7f},
			read: func(d *Decoder) error { _, err := d.ReadCount(); return err },
			want: ErrCollectionTooLarge,
		},
		{
			name: "count past end",
			data: []byte{0x03, 0x00},
			read: func(d *Decoder) error { _, err := d.ReadCount(); return err },
			want: io.ErrUnexpectedEOF,
		},
		{
			name: "short uint32",
			data: []byte{0x00, 0x01},
			read: func(d *Decoder) error { _, err := d.ReadUint32(); return err },
			want: io.ErrUnexpectedEOF,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(NewDecoder(tc.data))
			if !stderrors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecoderFinish(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	d.ReadByte()
	if err := d.Finish(); !stderrors.Is(err, ErrTrailingBytes) {
		t.Errorf("Finish() = %v, want ErrTrailingBytes", err)
	}
	if d.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", d.Remaining())
	}
}
