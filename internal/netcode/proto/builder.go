package proto

import (
	"fmt"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Builder assembles an op-blob: a sequence of (opCode, opLength, payload)
// records, per spec.md §6. It is used both to assemble a sender's template
// snapshot and to assemble a per-client filtered copy of it.
type Builder struct {
	w     *wire.Writer
	count uint32
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{w: wire.NewWriter()}
}

func (b *Builder) appendRecord(code OpCode, payload *wire.Writer) {
	b.w.WriteUint8(uint8(code))
	b.w.WriteUint32(uint32(payload.Len()))
	b.w.WriteRaw(payload.Bytes())
	b.count++
}

// Create appends an OpCreate record.
func (b *Builder) Create(path, typeName string, owner *uint32) {
	pw := wire.NewWriter()
	encodeCreate(pw, path, typeName, owner)
	b.appendRecord(OpCreate, pw)
}

// Destroy appends an OpDestroy record.
func (b *Builder) Destroy(path string) {
	pw := wire.NewWriter()
	encodeDestroy(pw, path)
	b.appendRecord(OpDestroy, pw)
}

// AddComponent appends an OpAddComponent record.
func (b *Builder) AddComponent(path string, typeID ecs.TypeID, blob []byte) {
	pw := wire.NewWriter()
	encodeAddComponent(pw, path, typeID, blob)
	b.appendRecord(OpAddComponent, pw)
}

// RemoveComponent appends an OpRemoveComponent record.
func (b *Builder) RemoveComponent(path string, typeID ecs.TypeID) {
	pw := wire.NewWriter()
	encodeRemoveComponent(pw, path, typeID)
	b.appendRecord(OpRemoveComponent, pw)
}

// SetField appends an OpSetField record.
func (b *Builder) SetField(path string, typeID ecs.TypeID, fieldTag string, blob []byte) {
	pw := wire.NewWriter()
	encodeSetField(pw, path, typeID, fieldTag, blob)
	b.appendRecord(OpSetField, pw)
}

// AppendRaw re-appends an already-encoded op payload verbatim, without
// re-encoding it. Used when filtering a template snapshot per recipient: the
// kept operations' bytes are untouched, only which ones are kept changes.
func (b *Builder) AppendRaw(code OpCode, payload []byte) {
	b.w.WriteUint8(uint8(code))
	b.w.WriteUint32(uint32(len(payload)))
	b.w.WriteRaw(payload)
	b.count++
}

// Count reports how many operation records have been appended.
func (b *Builder) Count() uint32 {
	return b.count
}

// Bytes returns the accumulated op-blob.
func (b *Builder) Bytes() []byte {
	return b.w.Bytes()
}

// OperationIterator walks an op-blob one record at a time, in encoded order.
type OperationIterator struct {
	r         *wire.Reader
	remaining uint32
}

// NewOperationIterator returns an iterator over count records starting at
// the beginning of data.
func NewOperationIterator(data []byte, count uint32) *OperationIterator {
	return &OperationIterator{r: wire.NewReader(data), remaining: count}
}

// NewOperationIteratorFromReader returns an iterator continuing from r's
// current position (used right after decoding a snapshot Header from the
// same reader).
func NewOperationIteratorFromReader(r *wire.Reader, count uint32) *OperationIterator {
	return &OperationIterator{r: r, remaining: count}
}

// Next decodes the next record. ok is false once all records have been
// consumed. A non-nil err means the record was malformed; the caller should
// stop iterating (spec.md §7: "truncated operation: abort the current
// snapshot, keep connection").
func (it *OperationIterator) Next() (code OpCode, payload []byte, ok bool, err error) {
	if it.remaining == 0 {
		return 0, nil, false, nil
	}
	rawCode, err := it.r.ReadUint8()
	if err != nil {
		return 0, nil, true, fmt.Errorf("op code: %w", err)
	}
	length, err := it.r.ReadUint32()
	if err != nil {
		return 0, nil, true, fmt.Errorf("op length: %w", err)
	}
	if it.r.Remaining() < int(length) {
		return 0, nil, true, fmt.Errorf("op payload: %w", wire.ErrShortBuffer)
	}
	payload, err = it.r.ReadRaw(int(length))
	if err != nil {
		return 0, nil, true, fmt.Errorf("op payload: %w", err)
	}
	it.remaining--
	return OpCode(rawCode), payload, true, nil
}
