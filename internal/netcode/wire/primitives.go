// Package wire implements the primitive binary codec shared by the frame
// header and every snapshot/operation payload: fixed-width little-endian
// integers, length-prefixed UTF-8 strings, and length-prefixed blobs.
//
// Grounded on the teacher's internal/net/packet Reader/Writer (small structs
// with positional Read*/Write* methods over a byte slice), adapted to
// spec.md's wire format: no 4-byte padding, no legacy MS950/Big5 string
// encoding — strings are UTF-8 with a u32 length prefix throughout.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer is returned by every Read* method when fewer bytes remain
// than the field being decoded requires.
var ErrShortBuffer = errors.New("wire: short buffer")

// Writer accumulates an encoded payload. The zero value is not usable; use
// NewWriter.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer ready to accept Write* calls.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the accumulated payload. The returned slice aliases the
// Writer's internal buffer; callers must not retain it across further writes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteString writes a u32 byte-length prefix followed by the string's UTF-8
// bytes.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBlob writes a u32 byte-length prefix followed by b's bytes.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteRaw appends b verbatim, with no length prefix. Used when re-emitting
// an already-framed operation (e.g. server relay, per-client filtering).
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteVec3 writes three consecutive float32 values.
func (w *Writer) WriteVec3(v [3]float32) {
	w.WriteFloat32(v[0])
	w.WriteFloat32(v[1])
	w.WriteFloat32(v[2])
}

// Reader decodes a payload previously produced by Writer. Every method
// returns ErrShortBuffer (wrapped with field context) instead of panicking,
// so a malformed packet aborts only the snapshot being decoded, never the
// connection.
type Reader struct {
	data []byte
	off  int
}

// NewReader wraps data for sequential decoding. data is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining reports how many undecoded bytes are left.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// RemainingBytes returns the undecoded tail of the buffer, aliasing the
// underlying data.
func (r *Reader) RemainingBytes() []byte {
	return r.data[r.off:]
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("%w: need %d, have %d", ErrShortBuffer, n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString decodes a u32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", fmt.Errorf("string body: %w", err)
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

// ReadBlob decodes a u32-length-prefixed byte blob. The returned slice is a
// copy, safe to retain past the Reader's lifetime.
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, fmt.Errorf("blob body: %w", err)
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}

// ReadRaw reads exactly n bytes with no length prefix, returning a copy.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

func (r *Reader) ReadVec3() ([3]float32, error) {
	var v [3]float32
	for i := range v {
		f, err := r.ReadFloat32()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
