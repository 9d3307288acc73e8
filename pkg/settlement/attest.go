package settlement

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AttestationVerifier is the opaque capability check behind attested
// authority self-updates. The real platform primitive proves a caller is
// running specific unmodified code inside a TEE; here the proof is a
// secp256k1 signature by the registered enclave key over the app identity
// and the proposed matcher address.
type AttestationVerifier interface {
	// Verify returns nil iff proof legitimizes newMatcher as the
	// authorized off-chain execution identity.
	Verify(newMatcher common.Address, proof []byte) error
}

// EnclaveVerifier checks attestation proofs against a single registered
// enclave signing identity, bound to one app ID at construction.
type EnclaveVerifier struct {
	appID      []byte
	enclaveKey common.Address
}

// NewEnclaveVerifier registers the enclave identity attested proofs must
// recover to. appID pins proofs to one deployed app so a signature from
// another deployment of the same enclave image cannot be replayed here.
func NewEnclaveVerifier(appID []byte, enclaveKey common.Address) *EnclaveVerifier {
	return &EnclaveVerifier{
		appID:      append([]byte(nil), appID...),
		enclaveKey: enclaveKey,
	}
}

// Verify recovers the signer of keccak256(appID || newMatcher) and
// requires it to be the registered enclave key.
func (v *EnclaveVerifier) Verify(newMatcher common.Address, proof []byte) error {
	if len(proof) != crypto.SignatureLength {
		return fmt.Errorf("%w: proof is %d bytes, want %d", ErrBadAttestation, len(proof), crypto.SignatureLength)
	}

	digest := attestationDigest(v.appID, newMatcher)

	// Normalize the recovery byte: wallets emit V as 27/28.
	sig := append([]byte(nil), proof...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadAttestation, err)
	}
	if crypto.PubkeyToAddress(*pub) != v.enclaveKey {
		return fmt.Errorf("%w: signer is not the registered enclave key", ErrBadAttestation)
	}
	return nil
}

// attestationDigest is the message an enclave signs to endorse a matcher
// address: keccak256(appID || matcher).
func attestationDigest(appID []byte, matcher common.Address) []byte {
	return crypto.Keccak256(appID, matcher.Bytes())
}

// AttestationDigest exposes the signing digest for enclave-side tooling
// and tests.
func AttestationDigest(appID []byte, matcher common.Address) []byte {
	return attestationDigest(appID, matcher)
}
