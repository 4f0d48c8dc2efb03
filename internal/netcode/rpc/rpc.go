// Package rpc implements a request/reply call layer on top of the snapshot
// transport: a client issues a call carrying a correlation id, the server
// dispatches it to a handler and replies with the same id, and the client's
// waiting caller is resolved by it.
//
// Grounded on original_source/.../Network/CommonRpc.hpp (RpcHeader: a
// uint64 call id plus an RpcType), ClientRpc.hpp (MakeCall allocates the
// next id, registers a pending promise, sends; HandleReply looks the id up
// and resolves it) and ServerRpc.hpp (HandleRequest dispatches by RpcType,
// SendReply echoes the same id back). The C++ std::promise/std::future pair
// becomes a buffered Go channel; ClientRpc's static pendingMap/mutex becomes
// Caller's map guarded by a sync.Mutex.
package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Type identifies an RPC call's request/reply shape.
type Type uint16

const (
	TypeCreateGameObject  Type = 100
	TypeDestroyGameObject Type = 101
	TypeAddComponent      Type = 102
	TypeRemoveComponent   Type = 103
	TypeAddChild          Type = 104
	TypeRemoveChild       Type = 105
	TypeTranslateTo       Type = 106
)

// Header precedes every RPC request and reply payload.
type Header struct {
	ID   uint64
	Type Type
}

// EncodeHeader appends h to w.
func EncodeHeader(w *wire.Writer, h Header) {
	w.WriteUint64(h.ID)
	w.WriteUint16(uint16(h.Type))
}

// DecodeHeader reads a Header, returning the remainder of payload as body.
func DecodeHeader(payload []byte) (Header, []byte, error) {
	r := wire.NewReader(payload)
	var h Header
	id, err := r.ReadUint64()
	if err != nil {
		return h, nil, fmt.Errorf("rpc header id: %w", err)
	}
	t, err := r.ReadUint16()
	if err != nil {
		return h, nil, fmt.Errorf("rpc header type: %w", err)
	}
	h.ID, h.Type = id, Type(t)
	return h, r.RemainingBytes(), nil
}

// Network is the send surface a Caller/Router needs.
type Network interface {
	SendTo(peer uint32, packetType uint16, payload []byte) error
}

// Reply is the body and type of a resolved call.
type Reply struct {
	Type Type
	Body []byte
}

// Caller is the client-side half: it allocates call ids, tracks pending
// calls, and resolves them as replies arrive.
type Caller struct {
	mu      sync.Mutex
	pending map[uint64]chan Reply
	nextID  atomic.Uint64

	network    Network
	packetType uint16 // the transport packet type carrying RPC frames
}

// NewCaller returns a Caller that sends outgoing calls to the server (peer
// 0) as packetType frames via network.
func NewCaller(network Network, packetType uint16) *Caller {
	return &Caller{
		pending:    make(map[uint64]chan Reply),
		network:    network,
		packetType: packetType,
	}
}

// Call sends a request of the given type carrying body, and blocks until a
// matching reply arrives or ctx is done.
func (c *Caller) Call(ctx context.Context, t Type, body []byte) (Reply, error) {
	id := c.nextID.Add(1)
	ch := make(chan Reply, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	w := wire.NewWriter()
	EncodeHeader(w, Header{ID: id, Type: t})
	w.WriteRaw(body)

	if err := c.network.SendTo(0, c.packetType, w.Bytes()); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Reply{}, fmt.Errorf("rpc: call %d: %w", t, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return Reply{}, ctx.Err()
	}
}

// HandleReply decodes an incoming reply frame and resolves the matching
// pending call, if any is still waiting.
func (c *Caller) HandleReply(payload []byte) error {
	h, body, err := DecodeHeader(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ch, ok := c.pending[h.ID]
	if ok {
		delete(c.pending, h.ID)
	}
	c.mu.Unlock()
	if !ok {
		return nil // reply for a call this caller no longer tracks (timed out, etc.)
	}
	ch <- Reply{Type: h.Type, Body: append([]byte(nil), body...)}
	return nil
}

// Handler processes one RPC request body from who, returning the reply
// body.
type Handler func(who uint32, body []byte) ([]byte, error)

// Router is the server-side half: it dispatches requests by Type and sends
// the reply back with the same call id.
type Router struct {
	handlers   map[Type]Handler
	network    Network
	packetType uint16
}

// NewRouter returns a Router that sends replies as packetType frames via
// network.
func NewRouter(network Network, packetType uint16) *Router {
	return &Router{handlers: make(map[Type]Handler), network: network, packetType: packetType}
}

// Register maps t to fn.
func (r *Router) Register(t Type, fn Handler) {
	r.handlers[t] = fn
}

// HandleRequest decodes an incoming request frame from who and dispatches
// it, sending back whatever the handler returns (or an empty reply if t has
// no registered handler).
func (r *Router) HandleRequest(who uint32, payload []byte) error {
	h, body, err := DecodeHeader(payload)
	if err != nil {
		return err
	}

	var reply []byte
	if fn, ok := r.handlers[h.Type]; ok {
		reply, err = fn(who, body)
		if err != nil {
			return fmt.Errorf("rpc: handler for %d: %w", h.Type, err)
		}
	}

	w := wire.NewWriter()
	EncodeHeader(w, Header{ID: h.ID, Type: h.Type})
	w.WriteRaw(reply)
	return r.network.SendTo(who, r.packetType, w.Bytes())
}
