// Package handshake implements an optional pre-auth gate in front of the
// transport's NetworkId assignment: a connecting socket must submit account
// credentials and have them verified before it is treated as a game peer.
//
// Grounded on the teacher's internal/persist/account_repo.go, which hashes
// and verifies passwords with golang.org/x/crypto/bcrypt; this package only
// defines the wire request/response and the Verifier seam, deferring the
// actual check to whatever implements Verifier (internal/persist's account
// repository in production, a fake in tests).
package handshake

import (
	"fmt"

	"github.com/scenegraph/syncengine/internal/netcode/wire"
)

// Credentials is the decoded payload of a handshake request.
type Credentials struct {
	AccountName string
	Password    string
}

// Verifier checks submitted credentials against an account store.
type Verifier interface {
	Verify(accountName, password string) (bool, error)
}

// EncodeRequest writes a Credentials payload.
func EncodeRequest(w *wire.Writer, accountName, password string) {
	w.WriteString(accountName)
	w.WriteString(password)
}

// DecodeRequest reads a Credentials payload.
func DecodeRequest(payload []byte) (Credentials, error) {
	r := wire.NewReader(payload)
	var c Credentials
	var err error
	if c.AccountName, err = r.ReadString(); err != nil {
		return c, fmt.Errorf("handshake.accountName: %w", err)
	}
	if c.Password, err = r.ReadString(); err != nil {
		return c, fmt.Errorf("handshake.password: %w", err)
	}
	return c, nil
}

// EncodeResult writes the accepted/rejected outcome, with a human-readable
// reason on rejection.
func EncodeResult(w *wire.Writer, accepted bool, reason string) {
	if accepted {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
	w.WriteString(reason)
}

// DecodeResult reads a handshake outcome.
func DecodeResult(payload []byte) (accepted bool, reason string, err error) {
	r := wire.NewReader(payload)
	flag, err := r.ReadUint8()
	if err != nil {
		return false, "", fmt.Errorf("handshake.accepted: %w", err)
	}
	reason, err = r.ReadString()
	if err != nil {
		return false, "", fmt.Errorf("handshake.reason: %w", err)
	}
	return flag != 0, reason, nil
}
