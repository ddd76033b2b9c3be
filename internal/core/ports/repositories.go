package ports

import (
	"context"

	"streampay/internal/core/domain"
)

// Tx is the view of the ledger given to one execution. Reads and writes are
// limited to the addresses declared for the execution and become visible only
// when the execution commits.
type Tx interface {
	Account(addr domain.Address) (*domain.Account, error)
	Exists(addr domain.Address) (bool, error)
	Create(addr, owner domain.Address, data []byte) error
	SetData(addr domain.Address, data []byte) error
	Transfer(from, to domain.Address, amount uint64) error
}

// Ledger is the substrate that records escrow state and value. Execute commits
// all staged writes of fn atomically when fn returns nil and discards them
// otherwise. Executions sharing a declared address never interleave.
type Ledger interface {
	Execute(ctx context.Context, declared []domain.Address, fn func(tx Tx) error) error
	Account(ctx context.Context, addr domain.Address) (*domain.Account, error)
	Fund(ctx context.Context, addr domain.Address, amount uint64) error
	Snapshot(ctx context.Context) ([]*domain.Account, error)
	Restore(ctx context.Context, accounts []*domain.Account) error
	Ping(ctx context.Context) error
	Close() error
}
