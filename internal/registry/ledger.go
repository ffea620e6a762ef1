package registry

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	derrors "credrelay/pkg/domain-errors"
)

// Ledger is an in-process trust registry with the semantics of the real
// thing: a single authorized writer, idempotent credential recording, and
// monotonic revocation. A configurable latency mimics consensus
// confirmation so concurrency behavior is exercised realistically in tests.
type Ledger struct {
	mu         sync.RWMutex
	authorized common.Address
	latency    time.Duration

	trusted map[common.Address]bool
	issued  map[common.Hash]bool
	revoked map[common.Hash]bool
}

type LedgerOption func(*Ledger)

// WithLatency adds a fixed delay to every call.
func WithLatency(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.latency = d }
}

// NewLedger builds a ledger whose mutating operations only accept the given
// writer address.
func NewLedger(authorized common.Address, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		authorized: authorized,
		trusted:    make(map[common.Address]bool),
		issued:     make(map[common.Hash]bool),
		revoked:    make(map[common.Hash]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) wait(ctx context.Context) error {
	if l.latency == 0 {
		return nil
	}
	select {
	case <-time.After(l.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) IsIssuerTrusted(ctx context.Context, issuer common.Address) (bool, error) {
	if err := l.wait(ctx); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trusted[issuer], nil
}

func (l *Ledger) IsCredentialIssued(ctx context.Context, hash common.Hash) (bool, error) {
	if err := l.wait(ctx); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.issued[hash], nil
}

func (l *Ledger) IsCredentialRevoked(ctx context.Context, hash common.Hash) (bool, error) {
	if err := l.wait(ctx); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revoked[hash], nil
}

func (l *Ledger) authorize(caller common.Address) error {
	if caller != l.authorized {
		return derrors.Newf(derrors.CodeRegistry, "caller %s is not authorized to write", caller.Hex())
	}
	return nil
}

func confirm() Confirmation {
	return Confirmation{Confirmed: true, Ref: uuid.NewString()}
}

func (l *Ledger) RegisterIssuer(ctx context.Context, caller, issuer common.Address) (Confirmation, error) {
	if err := l.wait(ctx); err != nil {
		return Confirmation{}, err
	}
	if err := l.authorize(caller); err != nil {
		return Confirmation{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trusted[issuer] = true
	return confirm(), nil
}

// RecordCredential is idempotent: recording an already-issued hash confirms
// without change.
func (l *Ledger) RecordCredential(ctx context.Context, caller common.Address, hash common.Hash) (Confirmation, error) {
	if err := l.wait(ctx); err != nil {
		return Confirmation{}, err
	}
	if err := l.authorize(caller); err != nil {
		return Confirmation{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued[hash] = true
	return confirm(), nil
}

// RevokeCredential is monotonic: once revoked, a hash is never un-revoked.
func (l *Ledger) RevokeCredential(ctx context.Context, caller common.Address, hash common.Hash) (Confirmation, error) {
	if err := l.wait(ctx); err != nil {
		return Confirmation{}, err
	}
	if err := l.authorize(caller); err != nil {
		return Confirmation{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[hash] = true
	return confirm(), nil
}
