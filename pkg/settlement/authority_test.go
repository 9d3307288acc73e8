package settlement

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tricodex/darkpool/pkg/crypto"
	"github.com/tricodex/darkpool/pkg/ledger"
)

var (
	adminAddr   = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	matcherAddr = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	rogueAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

const testAppID = "darkpool-test"

func TestAuthority_AdminUpdate(t *testing.T) {
	auth := NewAuthority(adminAddr, matcherAddr, nil, nil)
	next := common.HexToAddress("0x00000000000000000000000000000000000000e5")

	if err := auth.Apply(rogueAddr, AdminUpdate{NewMatcher: next}); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("rogue admin update: got %v, want ErrUnauthorized", err)
	}
	if auth.Matcher() != matcherAddr {
		t.Error("matcher changed after rejected update")
	}

	if err := auth.Apply(adminAddr, AdminUpdate{NewMatcher: next}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if auth.Matcher() != next {
		t.Errorf("matcher = %s, want %s", auth.Matcher().Hex(), next.Hex())
	}
	if !auth.IsPrivileged(next) || auth.IsPrivileged(matcherAddr) {
		t.Error("privilege did not follow the rotation")
	}
}

func TestAuthority_AttestedSelfUpdate(t *testing.T) {
	enclave, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate enclave key: %v", err)
	}
	verifier := NewEnclaveVerifier([]byte(testAppID), enclave.Address())
	auth := NewAuthority(adminAddr, matcherAddr, verifier, nil)

	fresh, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate matcher key: %v", err)
	}
	newMatcher := fresh.Address()

	proof, err := enclave.Sign(AttestationDigest([]byte(testAppID), newMatcher))
	if err != nil {
		t.Fatalf("sign attestation: %v", err)
	}

	// The attested path is a self-update: someone else cannot apply it.
	err = auth.Apply(rogueAddr, AttestedSelfUpdate{NewMatcher: newMatcher, Proof: proof})
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("third-party attested update: got %v, want ErrUnauthorized", err)
	}

	if err := auth.Apply(newMatcher, AttestedSelfUpdate{NewMatcher: newMatcher, Proof: proof}); err != nil {
		t.Fatalf("attested self-update: %v", err)
	}
	if auth.Matcher() != newMatcher {
		t.Errorf("matcher = %s, want %s", auth.Matcher().Hex(), newMatcher.Hex())
	}
}

func TestAuthority_AttestedUpdateRejectsBadProofs(t *testing.T) {
	enclave, _ := crypto.GenerateKey()
	impostor, _ := crypto.GenerateKey()
	verifier := NewEnclaveVerifier([]byte(testAppID), enclave.Address())
	auth := NewAuthority(adminAddr, matcherAddr, verifier, nil)

	fresh, _ := crypto.GenerateKey()
	newMatcher := fresh.Address()
	digest := AttestationDigest([]byte(testAppID), newMatcher)

	tests := []struct {
		name  string
		proof []byte
	}{
		{"wrong signer", mustSign(t, impostor, digest)},
		{"wrong app id", mustSign(t, enclave, AttestationDigest([]byte("other-app"), newMatcher))},
		{"wrong matcher bound", mustSign(t, enclave, AttestationDigest([]byte(testAppID), rogueAddr))},
		{"truncated", []byte{0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.Apply(newMatcher, AttestedSelfUpdate{NewMatcher: newMatcher, Proof: tt.proof})
			if !errors.Is(err, ErrBadAttestation) {
				t.Errorf("got %v, want ErrBadAttestation", err)
			}
			if auth.Matcher() != matcherAddr {
				t.Error("matcher changed on rejected proof")
			}
		})
	}
}

func TestAuthority_AttestedUpdateWithoutVerifier(t *testing.T) {
	auth := NewAuthority(adminAddr, matcherAddr, nil, nil)
	err := auth.Apply(rogueAddr, AttestedSelfUpdate{NewMatcher: rogueAddr, Proof: []byte{1}})
	if !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("got %v, want ErrUnauthorized when no verifier configured", err)
	}
}

func mustSign(t *testing.T, s *crypto.Signer, digest []byte) []byte {
	t.Helper()
	sig, err := s.Sign(digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}
