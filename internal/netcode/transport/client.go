package transport

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/netcode/handshake"
	"github.com/scenegraph/syncengine/internal/netcode/proto"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Client is the client-side half of the transport: a single Connection to
// the server, peer id 0 reserved for "the server" (proto.ServerPeer).
type Client struct {
	conn     *Connection
	dispatch *Dispatcher
	selfPeer uint32
	log      *zap.Logger
}

// ClientConfig bundles Client construction parameters.
type ClientConfig struct {
	Dispatcher *Dispatcher
	Log        *zap.Logger
}

// Dial connects to addr and blocks until the server's S2CAssignNetworkID
// handshake frame arrives, returning the connected Client with SelfPeer set.
func Dial(addr string, cfg ClientConfig) (*Client, error) {
	return dial(addr, cfg, nil)
}

// DialWithCredentials is Dial preceded by a C2SHandshakeRequest/
// S2CHandshakeResult exchange, for servers configured with a
// handshake.Verifier.
func DialWithCredentials(addr string, cfg ClientConfig, accountName, password string) (*Client, error) {
	return dial(addr, cfg, &handshake.Credentials{AccountName: accountName, Password: password})
}

func dial(addr string, cfg ClientConfig, creds *handshake.Credentials) (*Client, error) {
	netConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	if creds != nil {
		w := wire.NewWriter()
		handshake.EncodeRequest(w, creds.AccountName, creds.Password)
		if err := wire.WriteFrame(netConn, uint16(C2SHandshakeRequest), 0, w.Bytes()); err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: handshake request: %w", err)
		}
		hdr, payload, err := wire.ReadFrame(netConn, MaxPayloadSize)
		if err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: handshake result: %w", err)
		}
		if PacketType(hdr.PacketType) != S2CHandshakeResult {
			netConn.Close()
			return nil, fmt.Errorf("transport: handshake result: unexpected packet type %d", hdr.PacketType)
		}
		accepted, reason, err := handshake.DecodeResult(payload)
		if err != nil {
			netConn.Close()
			return nil, fmt.Errorf("transport: handshake result: %w", err)
		}
		if !accepted {
			netConn.Close()
			return nil, fmt.Errorf("transport: handshake rejected: %s", reason)
		}
	}

	hdr, payload, err := wire.ReadFrame(netConn, MaxPayloadSize)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: handshake: %w", err)
	}
	if PacketType(hdr.PacketType) != S2CAssignNetworkID {
		netConn.Close()
		return nil, fmt.Errorf("transport: handshake: expected S2CAssignNetworkID, got %d", hdr.PacketType)
	}
	selfPeer, err := wire.NewReader(payload).ReadUint32()
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: handshake: assigned id: %w", err)
	}

	c := newConnection(netConn, 0, log)
	client := &Client{conn: c, dispatch: cfg.Dispatcher, selfPeer: selfPeer, log: log}

	go c.writeLoop()
	go c.readLoop(func(packetType uint16, payload []byte) {
		// Every frame the client reads comes from the server, identified as
		// proto.ServerPeer (0) — not this client's own assigned NetworkId.
		// Dispatching with selfPeer here would make HandleSnapshot track
		// "last incoming sequence" under the wrong tracker key, permanently
		// desyncing the outgoing Ack field from what was actually received.
		client.dispatch.Dispatch(PacketType(packetType), proto.ServerPeer, payload)
	})

	return client, nil
}

// SelfPeer returns the NetworkId the server assigned to this client.
func (c *Client) SelfPeer() uint32 {
	return c.selfPeer
}

// Send sends payload framed as packetType to the server.
func (c *Client) Send(packetType uint16, payload []byte) error {
	return c.conn.Send(packetType, payload)
}

// SendTo ignores peer (a client only ever talks to the server) and sends to
// it. Implements internal/sync/sender.Network.
func (c *Client) SendTo(peer uint32, packetType uint16, payload []byte) error {
	return c.conn.Send(packetType, payload)
}

// ConnectedPeers always reports a single entry: peer 0, the server.
// Implements internal/sync/sender.Network.
func (c *Client) ConnectedPeers() []uint32 {
	return []uint32{0}
}

// Close disconnects from the server.
func (c *Client) Close() {
	c.conn.Close()
}
