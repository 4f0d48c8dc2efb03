package transport

// PacketType identifies a frame's payload shape (spec.md §4.4).
type PacketType uint16

const (
	// S2CAssignNetworkID is sent once, immediately after accept, carrying
	// the newly connected peer's assigned NetworkId as a u32 payload.
	S2CAssignNetworkID PacketType = 1
	// S2CRequestStringID asks the client to resolve a display name/asset
	// path for a following Create op (spec.md §4.4's handshake sequence);
	// payload is a single length-prefixed string.
	S2CRequestStringID PacketType = 2
	// C2SSnapshot carries a client-originated snapshot (proto.Header +
	// operation records) bound for the server.
	C2SSnapshot PacketType = 3
	// S2CSnapshot carries a server-originated snapshot bound for a client.
	S2CSnapshot PacketType = 4

	// C2SHandshakeRequest carries a handshake.Credentials payload, sent
	// before any other frame when the server is configured with a
	// handshake.Verifier. S2CHandshakeResult carries the accept/reject
	// answer back.
	C2SHandshakeRequest PacketType = 5
	S2CHandshakeResult  PacketType = 6

	// C2SRpcCall carries an rpc.Header + request body; S2CRpcReply carries
	// an rpc.Header + reply body.
	C2SRpcCall  PacketType = 7
	S2CRpcReply PacketType = 8

	// PhysicsCommandRangeStart through PhysicsCommandRangeEnd are reserved
	// for a physics/movement-command channel layered over this transport by
	// the hosting game; this repo's core never defines opcodes in this
	// range and the dispatcher never rejects them, it simply has no
	// registered handler until the host registers one.
	PhysicsCommandRangeStart PacketType = 100
	PhysicsCommandRangeEnd   PacketType = 199
)

// MaxPayloadSize bounds a single frame's payload (spec.md §7: a frame whose
// declared payload size exceeds this is treated as a protocol violation and
// the connection is dropped, rather than risking an unbounded allocation).
const MaxPayloadSize = 1 << 20 // 1 MiB
