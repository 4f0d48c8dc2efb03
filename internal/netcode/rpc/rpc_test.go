package rpc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

type fakeNetwork struct {
	mu     sync.Mutex
	sent   []sentFrame
	onSend func(peer uint32, packetType uint16, payload []byte)
}

type sentFrame struct {
	peer       uint32
	packetType uint16
	payload    []byte
}

func (f *fakeNetwork) SendTo(peer uint32, packetType uint16, payload []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentFrame{peer, packetType, payload})
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(peer, packetType, payload)
	}
	return nil
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	w := wire.NewWriter()
	EncodeHeader(w, Header{ID: 42, Type: TypeCreateGameObject})
	w.WriteRaw([]byte("body"))

	h, body, err := DecodeHeader(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.ID != 42 || h.Type != TypeCreateGameObject || string(body) != "body" {
		t.Fatalf("decoded = %+v, body=%q", h, body)
	}
}

func TestCallerCallResolvesOnReply(t *testing.T) {
	net := &fakeNetwork{}
	caller := NewCaller(net, 7)
	net.onSend = func(peer uint32, packetType uint16, payload []byte) {
		h, _, err := DecodeHeader(payload)
		if err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		go func() {
			w := wire.NewWriter()
			EncodeHeader(w, Header{ID: h.ID, Type: h.Type})
			w.WriteRaw([]byte("reply body"))
			if err := caller.HandleReply(w.Bytes()); err != nil {
				t.Errorf("HandleReply: %v", err)
			}
		}()
	}

	reply, err := caller.Call(context.Background(), TypeCreateGameObject, []byte("req"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if reply.Type != TypeCreateGameObject || string(reply.Body) != "reply body" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestCallTimesOutWithoutReply(t *testing.T) {
	net := &fakeNetwork{}
	caller := NewCaller(net, 7)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := caller.Call(ctx, TypeCreateGameObject, nil)
	if err == nil {
		t.Fatal("expected an error when no reply ever arrives")
	}
}

func TestHandleReplyForUnknownIDIsANoop(t *testing.T) {
	caller := NewCaller(&fakeNetwork{}, 7)
	w := wire.NewWriter()
	EncodeHeader(w, Header{ID: 999, Type: TypeCreateGameObject})
	if err := caller.HandleReply(w.Bytes()); err != nil {
		t.Fatalf("HandleReply for an unknown id should not error, got %v", err)
	}
}

func TestRouterDispatchesAndRepliesWithSameID(t *testing.T) {
	net := &fakeNetwork{}
	router := NewRouter(net, 8)
	router.Register(TypeAddComponent, func(who uint32, body []byte) ([]byte, error) {
		return append([]byte("handled:"), body...), nil
	})

	req := wire.NewWriter()
	EncodeHeader(req, Header{ID: 5, Type: TypeAddComponent})
	req.WriteRaw([]byte("payload"))

	if err := router.HandleRequest(3, req.Bytes()); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	net.mu.Lock()
	defer net.mu.Unlock()
	if len(net.sent) != 1 {
		t.Fatalf("expected exactly one reply sent, got %d", len(net.sent))
	}
	got := net.sent[0]
	if got.peer != 3 || got.packetType != 8 {
		t.Fatalf("reply sent to peer=%d packetType=%d", got.peer, got.packetType)
	}
	h, body, err := DecodeHeader(got.payload)
	if err != nil {
		t.Fatalf("DecodeHeader(reply): %v", err)
	}
	if h.ID != 5 || string(body) != "handled:payload" {
		t.Fatalf("reply header/body = %+v, %q", h, body)
	}
}

func TestRouterWithNoHandlerRepliesEmpty(t *testing.T) {
	net := &fakeNetwork{}
	router := NewRouter(net, 8)

	req := wire.NewWriter()
	EncodeHeader(req, Header{ID: 1, Type: Type(9999)})
	if err := router.HandleRequest(1, req.Bytes()); err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	net.mu.Lock()
	defer net.mu.Unlock()
	if len(net.sent) != 1 {
		t.Fatalf("expected a reply even with no handler, got %d sends", len(net.sent))
	}
	_, body, err := DecodeHeader(net.sent[0].payload)
	if err != nil || len(body) != 0 {
		t.Fatalf("expected an empty reply body, got %q, err=%v", body, err)
	}
}
