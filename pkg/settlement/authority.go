package settlement

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/tricodex/darkpool/pkg/ledger"
)

// Authority is the typed authorization context for settlement: who
// administers the contract and which single address is currently trusted
// to call ExecuteMatch. The matcher is mutable only through Apply, so the
// two trust paths (admin rotation vs attested self-update) stay visible
// and independently testable.
type Authority struct {
	mu       sync.RWMutex
	admin    common.Address
	matcher  common.Address
	verifier AttestationVerifier
	log      *zap.SugaredLogger
}

// NewAuthority creates the authorization context. verifier may be nil,
// which disables the attested self-update path entirely.
func NewAuthority(admin, matcher common.Address, verifier AttestationVerifier, log *zap.SugaredLogger) *Authority {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Authority{
		admin:    admin,
		matcher:  matcher,
		verifier: verifier,
		log:      log,
	}
}

// Admin returns the administrative owner.
func (a *Authority) Admin() common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admin
}

// Matcher returns the currently authorized settlement caller.
func (a *Authority) Matcher() common.Address {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.matcher
}

// IsPrivileged implements ledger.Privileged: the matcher is the one
// address with privileged read access to order payloads and indexes.
func (a *Authority) IsPrivileged(addr common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return addr == a.matcher
}

// Update is a tagged authority mutation. Exactly two variants exist.
type Update interface {
	isUpdate()
}

// AdminUpdate rotates the matcher by administrative fiat.
// Legal only when applied by the admin.
type AdminUpdate struct {
	NewMatcher common.Address
}

func (AdminUpdate) isUpdate() {}

// AttestedSelfUpdate rotates the matcher to the caller itself, legitimized
// by an attestation proof instead of admin identity. This is how a freshly
// started enclave instance, whose key the admin has never seen, takes over
// the matcher role.
type AttestedSelfUpdate struct {
	NewMatcher common.Address
	Proof      []byte
}

func (AttestedSelfUpdate) isUpdate() {}

// Apply executes an authority update on behalf of caller.
func (a *Authority) Apply(caller common.Address, u Update) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch upd := u.(type) {
	case AdminUpdate:
		if caller != a.admin {
			return fmt.Errorf("admin authority update: %w", ledger.ErrUnauthorized)
		}
		a.log.Infow("matcher_rotated", "path", "admin", "old", a.matcher.Hex(), "new", upd.NewMatcher.Hex())
		a.matcher = upd.NewMatcher
		return nil

	case AttestedSelfUpdate:
		if a.verifier == nil {
			return fmt.Errorf("attested authority update: no verifier configured: %w", ledger.ErrUnauthorized)
		}
		if caller != upd.NewMatcher {
			return fmt.Errorf("attested update must be a self-update: %w", ledger.ErrUnauthorized)
		}
		if err := a.verifier.Verify(upd.NewMatcher, upd.Proof); err != nil {
			return err
		}
		a.log.Infow("matcher_rotated", "path", "attested", "old", a.matcher.Hex(), "new", upd.NewMatcher.Hex())
		a.matcher = upd.NewMatcher
		return nil

	default:
		return fmt.Errorf("unknown authority update %T", u)
	}
}
