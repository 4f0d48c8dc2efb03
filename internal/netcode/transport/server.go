package transport

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scenegraph/syncengine/internal/netcode/handshake"
	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// DisconnectGracePeriod is how long a disconnected peer's sync state is kept
// around before OnDisconnect fires the forget callback (spec.md §4.4: "notify
// sync layer to discard that peer's state after a grace period" — covers a
// client that drops and immediately reconnects without losing in-flight
// acks).
const DisconnectGracePeriod = 30 * time.Second

// Server accepts TCP connections, assigns each one a monotonically
// increasing NetworkId starting at 1, and sends it in an S2CAssignNetworkID
// frame before handing the connection to the dispatcher. S2CRequestStringID
// is never sent by the server.
type Server struct {
	listener net.Listener
	dispatch *Dispatcher
	nextID   atomic.Uint32

	mu    sync.RWMutex
	conns map[uint32]*Connection

	onConnect    func(peer uint32)
	onDisconnect func(peer uint32)
	verifier     handshake.Verifier

	closeCh chan struct{}
	log     *zap.Logger
}

// ServerConfig bundles Server construction parameters.
type ServerConfig struct {
	BindAddr     string
	Dispatcher   *Dispatcher
	OnConnect    func(peer uint32)
	OnDisconnect func(peer uint32) // called once the grace period elapses
	// Verifier, if non-nil, gates every accepted connection behind a
	// C2SHandshakeRequest/S2CHandshakeResult exchange before NetworkId
	// assignment. Nil skips the gate entirely.
	Verifier handshake.Verifier
	Log      *zap.Logger
}

// NewServer starts listening on cfg.BindAddr.
func NewServer(cfg ServerConfig) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.BindAddr, err)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		listener:     ln,
		dispatch:     cfg.Dispatcher,
		conns:        make(map[uint32]*Connection),
		onConnect:    cfg.OnConnect,
		onDisconnect: cfg.OnDisconnect,
		verifier:     cfg.Verifier,
		closeCh:      make(chan struct{}),
		log:          log,
	}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// AcceptLoop runs the accept loop until Shutdown is called. Intended to run
// in its own goroutine.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.handleAccept(conn)
	}
}

func (s *Server) handleAccept(netConn net.Conn) {
	if s.verifier != nil && !s.performHandshake(netConn) {
		netConn.Close()
		return
	}

	peer := s.nextID.Add(1)
	c := newConnection(netConn, peer, s.log)

	s.mu.Lock()
	s.conns[peer] = c
	s.mu.Unlock()

	assign := wire.NewWriter()
	assign.WriteUint32(peer)
	if err := wire.WriteFrame(netConn, uint16(S2CAssignNetworkID), 0, assign.Bytes()); err != nil {
		s.log.Warn("failed to send handshake", zap.Error(err), zap.Uint32("peer", peer))
		c.Close()
		s.forgetNow(peer)
		return
	}

	go c.writeLoop()
	go c.readLoop(func(packetType uint16, payload []byte) {
		s.dispatch.Dispatch(PacketType(packetType), peer, payload)
	})

	s.log.Info("peer connected", zap.Uint32("peer", peer), zap.String("addr", netConn.RemoteAddr().String()))
	if s.onConnect != nil {
		s.onConnect(peer)
	}
	go s.watchDisconnect(c)
}

// watchDisconnect waits for c to close, then schedules the peer's state to
// be forgotten after DisconnectGracePeriod.
func (s *Server) watchDisconnect(c *Connection) {
	<-c.closeCh
	s.log.Info("peer disconnected, starting grace period", zap.Uint32("peer", c.Peer))
	time.Sleep(DisconnectGracePeriod)
	s.forgetNow(c.Peer)
}

// performHandshake reads one C2SHandshakeRequest frame directly off netConn
// (before any Connection/goroutines exist), verifies it, and writes back a
// S2CHandshakeResult. Runs synchronously on the accept loop, so a slow or
// silent client only blocks its own connection's admission, not other
// accepts — the teacher's Session.Start does its plaintext init write the
// same way, inline before spinning up the read/write goroutines.
func (s *Server) performHandshake(netConn net.Conn) bool {
	hdr, payload, err := wire.ReadFrame(netConn, MaxPayloadSize)
	if err != nil {
		s.log.Debug("handshake: read failed", zap.Error(err))
		return false
	}
	if PacketType(hdr.PacketType) != C2SHandshakeRequest {
		s.log.Debug("handshake: unexpected packet type", zap.Uint16("packetType", hdr.PacketType))
		return false
	}
	creds, err := handshake.DecodeRequest(payload)
	if err != nil {
		s.log.Debug("handshake: malformed request", zap.Error(err))
		return false
	}

	ok, err := s.verifier.Verify(creds.AccountName, creds.Password)
	reason := ""
	if err != nil {
		reason = err.Error()
		ok = false
	} else if !ok {
		reason = "invalid credentials"
	}

	w := wire.NewWriter()
	handshake.EncodeResult(w, ok, reason)
	if writeErr := wire.WriteFrame(netConn, uint16(S2CHandshakeResult), 0, w.Bytes()); writeErr != nil {
		s.log.Debug("handshake: write result failed", zap.Error(writeErr))
		return false
	}
	return ok
}

func (s *Server) forgetNow(peer uint32) {
	s.mu.Lock()
	delete(s.conns, peer)
	s.mu.Unlock()
	if s.onDisconnect != nil {
		s.onDisconnect(peer)
	}
}

// SendTo sends payload framed as packetType to the named peer. Implements
// internal/sync/sender.Network.
func (s *Server) SendTo(peer uint32, packetType uint16, payload []byte) error {
	s.mu.RLock()
	c, ok := s.conns[peer]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: unknown peer %d", peer)
	}
	return c.Send(packetType, payload)
}

// ConnectedPeers returns every currently connected peer id. Implements
// internal/sync/sender.Network.
func (s *Server) ConnectedPeers() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint32, 0, len(s.conns))
	for peer := range s.conns {
		out = append(out, peer)
	}
	return out
}

// Shutdown stops accepting new connections and closes every connected peer.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}
