package transport

import (
	"go.uber.org/zap"
)

// HandlerFunc processes one decoded frame's payload, originating from peer.
type HandlerFunc func(peer uint32, payload []byte)

// Dispatcher maps packet types to handlers, grounded on the teacher's
// internal/net/packet.Registry: an opcode-keyed map with panic-recovery
// around each call, so one malformed or buggy handler invocation cannot take
// down a connection's read loop.
type Dispatcher struct {
	handlers map[PacketType]HandlerFunc
	log      *zap.Logger
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{handlers: make(map[PacketType]HandlerFunc), log: log}
}

// Register maps packetType to fn, replacing any previous registration.
func (d *Dispatcher) Register(packetType PacketType, fn HandlerFunc) {
	d.handlers[packetType] = fn
}

// Dispatch looks up and invokes the handler for packetType. An unregistered
// packet type is logged at debug level and dropped — the reserved physics-command range in
// particular is expected to have no handler until a hosting game registers
// one.
func (d *Dispatcher) Dispatch(packetType PacketType, peer uint32, payload []byte) {
	fn, ok := d.handlers[packetType]
	if !ok {
		d.log.Debug("no handler for packet type", zap.Uint16("packetType", uint16(packetType)), zap.Uint32("peer", peer))
		return
	}
	d.safeCall(fn, packetType, peer, payload)
}

func (d *Dispatcher) safeCall(fn HandlerFunc, packetType PacketType, peer uint32, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("packet handler panic recovered",
				zap.Uint16("packetType", uint16(packetType)),
				zap.Uint32("peer", peer),
				zap.Any("panic", rec),
			)
		}
	}()
	fn(peer, payload)
}
