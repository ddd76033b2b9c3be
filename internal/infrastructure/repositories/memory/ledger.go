package memory

import (
	"context"
	"sort"
	"sync"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/infrastructure/repositories/txn"
)

// MemoryLedger keeps accounts in process memory. Executions are serialized
// behind a single mutex.
type MemoryLedger struct {
	accounts map[domain.Address]*domain.Account
	mu       sync.RWMutex
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts: make(map[domain.Address]*domain.Account),
	}
}

func (l *MemoryLedger) load(addr domain.Address) (*domain.Account, error) {
	acct, ok := l.accounts[addr]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return acct, nil
}

func (l *MemoryLedger) execute(declared []domain.Address, fn func(tx *txn.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := txn.New(declared, l.load)
	if err := fn(tx); err != nil {
		return err
	}
	for _, acct := range tx.Dirty() {
		l.accounts[acct.Address] = acct
	}
	return nil
}

func (l *MemoryLedger) Execute(ctx context.Context, declared []domain.Address, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.execute(declared, func(tx *txn.Tx) error {
		return fn(tx)
	})
}

func (l *MemoryLedger) Account(ctx context.Context, addr domain.Address) (*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, err := l.load(addr)
	if err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

func (l *MemoryLedger) Fund(ctx context.Context, addr domain.Address, amount uint64) error {
	return l.execute([]domain.Address{addr}, func(tx *txn.Tx) error {
		return tx.Mint(addr, amount)
	})
}

func (l *MemoryLedger) Snapshot(ctx context.Context) ([]*domain.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Account, 0, len(l.accounts))
	for _, acct := range l.accounts {
		out = append(out, acct.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out, nil
}

// Restore replaces the whole ledger with accounts.
func (l *MemoryLedger) Restore(ctx context.Context, accounts []*domain.Account) error {
	next := make(map[domain.Address]*domain.Account, len(accounts))
	for _, acct := range accounts {
		next[acct.Address] = acct.Clone()
	}

	l.mu.Lock()
	l.accounts = next
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Ping(ctx context.Context) error {
	return nil
}

func (l *MemoryLedger) Close() error {
	return nil
}
