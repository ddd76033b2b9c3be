package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) ObserveTransition(kind string, err error, duration time.Duration) {
	m.Called(kind, err, duration)
}

func (m *MockMetricsRecorder) AddValueMoved(kind string, value uint64) {
	m.Called(kind, value)
}

func (m *MockMetricsRecorder) IncPublishFailures() {
	m.Called()
}

type MockEscrowService struct {
	mock.Mock
	ports.EscrowService
}

func (m *MockEscrowService) GetGroup(ctx context.Context, groupID uint64) (*domain.GroupRecord, error) {
	args := m.Called(ctx, groupID)
	if g := args.Get(0); g != nil {
		return g.(*domain.GroupRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEscrowService) CreatePaymentGroup(ctx context.Context, signer domain.Address, groupID uint64, creator domain.Address, rate uint64, discount bool) (*domain.GroupRecord, error) {
	args := m.Called(ctx, signer, groupID, creator, rate, discount)
	if g := args.Get(0); g != nil {
		return g.(*domain.GroupRecord), args.Error(1)
	}
	return nil, args.Error(1)
}
