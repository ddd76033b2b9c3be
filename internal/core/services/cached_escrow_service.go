package services

import (
	"context"
	"time"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/pkg/cache"
)

// CachedEscrowService wraps EscrowService with a read cache for payment
// groups. Group records are immutable once created, so entries only expire.
type CachedEscrowService struct {
	ports.EscrowService
	groups *cache.Cache[uint64, *domain.GroupRecord]
}

func NewCachedEscrowService(base ports.EscrowService, groupTTL time.Duration) *CachedEscrowService {
	return &CachedEscrowService{
		EscrowService: base,
		groups:        cache.New[uint64, *domain.GroupRecord](groupTTL),
	}
}

// CreatePaymentGroup primes the cache with the new record.
func (s *CachedEscrowService) CreatePaymentGroup(ctx context.Context, signer domain.Address, groupID uint64, creator domain.Address, rate uint64, discount bool) (*domain.GroupRecord, error) {
	group, err := s.EscrowService.CreatePaymentGroup(ctx, signer, groupID, creator, rate, discount)
	if err != nil {
		return nil, err
	}
	s.groups.Set(groupID, group)
	return group, nil
}

// GetGroup gets a group with caching. Misses are not cached.
func (s *CachedEscrowService) GetGroup(ctx context.Context, groupID uint64) (*domain.GroupRecord, error) {
	return s.groups.GetOrLoad(groupID, func() (*domain.GroupRecord, error) {
		return s.EscrowService.GetGroup(ctx, groupID)
	})
}

// Purge drops expired entries and returns how many were removed.
func (s *CachedEscrowService) Purge() int {
	return s.groups.Purge()
}
