package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeaderSize is the fixed size, in bytes, of the frame header.
// spec.md specifies a packed 12-byte header; the three named fields (u16 +
// u32 + u32) only total 10 bytes, so a 2-byte reserved field pads it to the
// specified size and the natural 4-byte alignment of the fields after it.
const FrameHeaderSize = 12

// FrameHeader precedes every payload on the wire.
type FrameHeader struct {
	PacketType      uint16
	PayloadSize     uint32
	OriginNetworkID uint32
}

// WriteFrame writes a frame header followed by payload to w.
//
// Grounded on the teacher's internal/net/codec.go WriteFrame, widened from a
// 2-byte length prefix to spec.md's 12-byte header (packet type + payload
// size + origin network id, plus 2 reserved bytes to reach 12).
func WriteFrame(w io.Writer, packetType uint16, originNetworkID uint32, payload []byte) error {
	var hdr [FrameHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:2], packetType)
	// hdr[2:4] reserved, left zero.
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:12], originNetworkID)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame header and its payload from r. maxPayload caps
// the accepted payload size; a header claiming more is a protocol violation
// and the caller should close the connection (spec.md §7: "frame length
// exceeds configured max: disconnect").
func ReadFrame(r io.Reader, maxPayload uint32) (FrameHeader, []byte, error) {
	var raw [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return FrameHeader{}, nil, err
	}
	hdr := FrameHeader{
		PacketType:      binary.LittleEndian.Uint16(raw[0:2]),
		PayloadSize:     binary.LittleEndian.Uint32(raw[4:8]),
		OriginNetworkID: binary.LittleEndian.Uint32(raw[8:12]),
	}
	if hdr.PayloadSize > maxPayload {
		return hdr, nil, fmt.Errorf("frame payload %d exceeds max %d", hdr.PayloadSize, maxPayload)
	}
	if hdr.PayloadSize == 0 {
		return hdr, nil, nil
	}
	payload := make([]byte, hdr.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return hdr, nil, fmt.Errorf("read frame payload: %w", err)
	}
	return hdr, payload, nil
}
