package proto

import (
	"fmt"
	"strings"

	"github.com/scenegraph/syncengine/internal/ecs"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// CreateData is the decoded payload of an OpCreate record.
type CreateData struct {
	Path     string
	TypeName string
	Owner    *uint32
}

// DestroyData is the decoded payload of an OpDestroy record.
type DestroyData struct {
	Path string
}

// AddComponentData is the decoded payload of an OpAddComponent record.
type AddComponentData struct {
	Path            string
	ComponentTypeID ecs.TypeID
	Blob            []byte
}

// RemoveComponentData is the decoded payload of an OpRemoveComponent record.
type RemoveComponentData struct {
	Path            string
	ComponentTypeID ecs.TypeID
}

// SetFieldData is the decoded payload of an OpSetField record.
type SetFieldData struct {
	Path            string
	ComponentTypeID ecs.TypeID
	FieldTag        string
	Blob            []byte
}

func encodeCreate(w *wire.Writer, path, typeName string, owner *uint32) {
	w.WriteString(path)
	w.WriteString(typeName)
	if owner != nil {
		w.WriteUint8(1)
		w.WriteUint32(*owner)
	} else {
		w.WriteUint8(0)
	}
}

// DecodeCreate decodes an OpCreate payload.
func DecodeCreate(payload []byte) (CreateData, error) {
	r := wire.NewReader(payload)
	var d CreateData
	var err error
	if d.Path, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("create.path: %w", err)
	}
	if d.TypeName, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("create.typeName: %w", err)
	}
	hasOwner, err := r.ReadUint8()
	if err != nil {
		return d, fmt.Errorf("create.hasOwner: %w", err)
	}
	if hasOwner != 0 {
		owner, err := r.ReadUint32()
		if err != nil {
			return d, fmt.Errorf("create.ownerId: %w", err)
		}
		d.Owner = &owner
	}
	return d, nil
}

func encodeDestroy(w *wire.Writer, path string) {
	w.WriteString(path)
}

// DecodeDestroy decodes an OpDestroy payload.
func DecodeDestroy(payload []byte) (DestroyData, error) {
	r := wire.NewReader(payload)
	path, err := r.ReadString()
	if err != nil {
		return DestroyData{}, fmt.Errorf("destroy.path: %w", err)
	}
	return DestroyData{Path: path}, nil
}

func encodeAddComponent(w *wire.Writer, path string, typeID ecs.TypeID, blob []byte) {
	w.WriteString(path)
	w.WriteUint64(uint64(typeID))
	w.WriteBlob(blob)
}

// DecodeAddComponent decodes an OpAddComponent payload.
func DecodeAddComponent(payload []byte) (AddComponentData, error) {
	r := wire.NewReader(payload)
	var d AddComponentData
	var err error
	if d.Path, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("addComponent.path: %w", err)
	}
	typeID, err := r.ReadUint64()
	if err != nil {
		return d, fmt.Errorf("addComponent.componentTypeId: %w", err)
	}
	d.ComponentTypeID = ecs.TypeID(typeID)
	if d.Blob, err = r.ReadBlob(); err != nil {
		return d, fmt.Errorf("addComponent.blob: %w", err)
	}
	return d, nil
}

func encodeRemoveComponent(w *wire.Writer, path string, typeID ecs.TypeID) {
	w.WriteString(path)
	w.WriteUint64(uint64(typeID))
}

// DecodeRemoveComponent decodes an OpRemoveComponent payload.
func DecodeRemoveComponent(payload []byte) (RemoveComponentData, error) {
	r := wire.NewReader(payload)
	var d RemoveComponentData
	var err error
	if d.Path, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("removeComponent.path: %w", err)
	}
	typeID, err := r.ReadUint64()
	if err != nil {
		return d, fmt.Errorf("removeComponent.componentTypeId: %w", err)
	}
	d.ComponentTypeID = ecs.TypeID(typeID)
	return d, nil
}

func encodeSetField(w *wire.Writer, path string, typeID ecs.TypeID, fieldTag string, blob []byte) {
	w.WriteString(path)
	w.WriteUint64(uint64(typeID))
	w.WriteString(fieldTag)
	w.WriteBlob(blob)
}

// DecodeSetField decodes an OpSetField payload.
func DecodeSetField(payload []byte) (SetFieldData, error) {
	r := wire.NewReader(payload)
	var d SetFieldData
	var err error
	if d.Path, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("setField.path: %w", err)
	}
	typeID, err := r.ReadUint64()
	if err != nil {
		return d, fmt.Errorf("setField.componentTypeId: %w", err)
	}
	d.ComponentTypeID = ecs.TypeID(typeID)
	if d.FieldTag, err = r.ReadString(); err != nil {
		return d, fmt.Errorf("setField.fieldTag: %w", err)
	}
	if d.Blob, err = r.ReadBlob(); err != nil {
		return d, fmt.Errorf("setField.blob: %w", err)
	}
	return d, nil
}

// PeekPath decodes just the leading path string common to every operation
// payload, without decoding the rest. Used by the sender's per-client filter
// to find an op's owning root without a full typed decode.
func PeekPath(payload []byte) (string, error) {
	r := wire.NewReader(payload)
	return r.ReadString()
}

// RootOf returns the first path segment (before the first '.'), or the whole
// path if it has no dot. Root objects' absolute path equals their RootOf.
func RootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
