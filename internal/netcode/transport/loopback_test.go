package transport

import (
	"testing"
	"time"
)

func TestServerClientLoopbackHandshakeAndSend(t *testing.T) {
	serverDispatch := NewDispatcher(nil)
	connected := make(chan uint32, 1)

	srv, err := NewServer(ServerConfig{
		BindAddr:   "127.0.0.1:0",
		Dispatcher: serverDispatch,
		OnConnect:  func(peer uint32) { connected <- peer },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Shutdown()
	go srv.AcceptLoop()

	received := make(chan string, 1)
	serverDispatch.Register(C2SSnapshot, func(peer uint32, payload []byte) {
		received <- string(payload)
	})

	clientDispatch := NewDispatcher(nil)
	client, err := Dial(srv.Addr().String(), ClientConfig{Dispatcher: clientDispatch})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if client.SelfPeer() == 0 {
		t.Fatal("expected a non-zero assigned peer id")
	}

	select {
	case peer := <-connected:
		if peer != client.SelfPeer() {
			t.Fatalf("OnConnect peer = %d, want %d", peer, client.SelfPeer())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnConnect")
	}

	if err := client.Send(uint16(C2SSnapshot), []byte("hello server")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if got != "hello server" {
			t.Fatalf("server received %q, want %q", got, "hello server")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to receive the snapshot")
	}
}

func TestServerRejectsHandshakeWithBadCredentials(t *testing.T) {
	serverDispatch := NewDispatcher(nil)
	srv, err := NewServer(ServerConfig{
		BindAddr:   "127.0.0.1:0",
		Dispatcher: serverDispatch,
		Verifier:   rejectAllVerifier{},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Shutdown()
	go srv.AcceptLoop()

	clientDispatch := NewDispatcher(nil)
	_, err = DialWithCredentials(srv.Addr().String(), ClientConfig{Dispatcher: clientDispatch}, "nobody", "wrong")
	if err == nil {
		t.Fatal("expected DialWithCredentials to fail against a verifier that rejects everything")
	}
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) Verify(accountName, password string) (bool, error) {
	return false, nil
}

func TestSendToUnknownPeerFails(t *testing.T) {
	srv, err := NewServer(ServerConfig{BindAddr: "127.0.0.1:0", Dispatcher: NewDispatcher(nil)})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Shutdown()

	if err := srv.SendTo(999, uint16(S2CSnapshot), nil); err == nil {
		t.Fatal("expected an error sending to an unknown peer")
	}
}
