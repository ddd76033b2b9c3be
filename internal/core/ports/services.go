package ports

import (
	"context"
	"time"

	"streampay/internal/core/domain"
)

type EscrowService interface {
	Initialize(ctx context.Context, signer domain.Address) (*domain.TreasuryRecord, error)
	CreatePaymentGroup(ctx context.Context, signer domain.Address, groupID uint64, creator domain.Address, rate uint64, discount bool) (*domain.GroupRecord, error)
	OpenNamedStream(ctx context.Context, signer domain.Address, key domain.ByName) (*domain.StreamRecord, error)
	Pay(ctx context.Context, signer domain.Address, key domain.StreamKey, amount uint64) (*domain.StreamRecord, error)
	Cancel(ctx context.Context, signer domain.Address, key domain.StreamKey, amount uint64) (*domain.StreamRecord, error)
	Withdraw(ctx context.Context, signer domain.Address, key domain.StreamKey) (*domain.Withdrawal, error)
	WithdrawProgramFunds(ctx context.Context, signer domain.Address) (uint64, error)

	GetGroup(ctx context.Context, groupID uint64) (*domain.GroupRecord, error)
	GetStream(ctx context.Context, key domain.StreamKey) (*domain.StreamView, error)
	GetTreasury(ctx context.Context) (*domain.TreasuryView, error)
	DeriveAddresses(key domain.StreamKey) (*domain.StreamAddresses, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.TransitionEvent) error
}

type MetricsRecorder interface {
	ObserveTransition(kind string, err error, duration time.Duration)
	AddValueMoved(kind string, value uint64)
	IncPublishFailures()
}

// Clock supplies ledger time in unix seconds.
type Clock interface {
	Now() uint64
}
