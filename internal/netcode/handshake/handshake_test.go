package handshake

import (
	"testing"

	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	w := wire.NewWriter()
	EncodeRequest(w, "player1", "hunter2")

	c, err := DecodeRequest(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if c.AccountName != "player1" || c.Password != "hunter2" {
		t.Fatalf("decoded credentials = %+v", c)
	}
}

func TestEncodeDecodeResultAccepted(t *testing.T) {
	w := wire.NewWriter()
	EncodeResult(w, true, "")

	accepted, reason, err := DecodeResult(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if !accepted || reason != "" {
		t.Fatalf("accepted=%v reason=%q, want true, \"\"", accepted, reason)
	}
}

func TestEncodeDecodeResultRejectedCarriesReason(t *testing.T) {
	w := wire.NewWriter()
	EncodeResult(w, false, "bad password")

	accepted, reason, err := DecodeResult(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if accepted || reason != "bad password" {
		t.Fatalf("accepted=%v reason=%q, want false, \"bad password\"", accepted, reason)
	}
}

func TestDecodeRequestTruncatedPayload(t *testing.T) {
	if _, err := DecodeRequest(nil); err == nil {
		t.Fatal("expected an error decoding an empty request payload")
	}
}

type fakeVerifier struct {
	allow map[string]string
}

func (f fakeVerifier) Verify(accountName, password string) (bool, error) {
	want, ok := f.allow[accountName]
	return ok && want == password, nil
}

func TestVerifierInterfaceSatisfiedByFake(t *testing.T) {
	var v Verifier = fakeVerifier{allow: map[string]string{"player1": "hunter2"}}

	ok, err := v.Verify("player1", "hunter2")
	if err != nil || !ok {
		t.Fatalf("Verify(correct) = %v, %v", ok, err)
	}
	ok, err = v.Verify("player1", "wrong")
	if err != nil || ok {
		t.Fatalf("Verify(wrong) = %v, %v", ok, err)
	}
}
