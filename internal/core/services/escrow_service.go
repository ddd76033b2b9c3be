package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/pkg/logger"
	"streampay/pkg/tracing"
)

const (
	TransitionInitialize    = "initialize"
	TransitionCreateGroup   = "create_group"
	TransitionOpenStream    = "open_stream"
	TransitionPay           = "pay"
	TransitionCancel        = "cancel"
	TransitionWithdraw      = "withdraw"
	TransitionWithdrawFunds = "withdraw_program_funds"
)

type EscrowConfig struct {
	ProgramID domain.Address
	// BaseRate prices named streams: rate = level * BaseRate.
	BaseRate           uint64
	AllowEmptyWithdraw bool
}

type escrowService struct {
	ledger    ports.Ledger
	clock     ports.Clock
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	deriver   domain.Deriver
	cfg       EscrowConfig
	logger    *logger.ContextLogger
}

// transitionFunc runs inside one ledger execution. It returns the event to
// publish after commit, or nil when the transition changed nothing.
type transitionFunc func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error)

func NewEscrowService(
	ledger ports.Ledger,
	clock ports.Clock,
	publisher ports.EventPublisher,
	metrics ports.MetricsRecorder,
	cfg EscrowConfig,
	log *zap.SugaredLogger,
) (ports.EscrowService, error) {
	if cfg.ProgramID.IsZero() {
		return nil, fmt.Errorf("%w: program id must be set", domain.ErrInvalidAddress)
	}
	if cfg.BaseRate == 0 {
		return nil, fmt.Errorf("%w: base rate must be > 0", domain.ErrInvalidAmount)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &escrowService{
		ledger:    ledger,
		clock:     clock,
		publisher: publisher,
		metrics:   metrics,
		deriver:   domain.NewDeriver(cfg.ProgramID),
		cfg:       cfg,
		logger:    logger.NewContextLogger(log.Desugar()),
	}, nil
}

func (s *escrowService) execute(ctx context.Context, kind string, signer domain.Address, declared []domain.Address, fn transitionFunc) error {
	start := time.Now()
	ctx, span := tracing.TraceTransition(ctx, kind, signer.String(), len(declared))
	defer span.End()

	var event *domain.TransitionEvent
	err := s.ledger.Execute(ctx, declared, func(tx ports.Tx) error {
		ev, err := fn(tx, s.clock.Now())
		if err != nil {
			return err
		}
		event = ev
		return nil
	})
	s.metrics.ObserveTransition(kind, err, time.Since(start))

	log := s.logger.Sugar(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		log.Warnw("transition rejected",
			"transition", kind,
			"signer", signer,
			"kind", domain.Kind(err),
			"error", err,
		)
		return err
	}
	if event == nil {
		log.Debugw("transition committed without changes", "transition", kind, "signer", signer)
		return nil
	}

	event.ID = uuid.NewString()
	event.Signer = signer
	s.metrics.AddValueMoved(kind, event.Value)
	attrs := []attribute.KeyValue{
		tracing.AddressKey.String(event.Address.String()),
		tracing.ValueKey.Int64(int64(event.Value)),
	}
	if event.Key != "" {
		attrs = append(attrs,
			tracing.StreamKeyKey.String(event.Key),
			tracing.AmountKey.Int64(int64(event.Amount)),
		)
	}
	tracing.AddSpanAttributes(ctx, attrs...)
	log.Infow("transition committed",
		"transition", kind,
		"event_id", event.ID,
		"signer", signer,
		"address", event.Address,
		"key", event.Key,
		"amount", event.Amount,
		"value", event.Value,
		"until", event.Until,
	)

	s.publish(ctx, event)
	return nil
}

// publish is best effort. A committed transition never fails because the
// feed is down.
func (s *escrowService) publish(ctx context.Context, event *domain.TransitionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.IncPublishFailures()
		s.logger.Sugar(ctx).Warnw("failed to publish transition event",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
	}
}

func checkSigner(signer domain.Address) error {
	if signer.IsZero() {
		return fmt.Errorf("%w: signer must be set", domain.ErrInvalidAddress)
	}
	return nil
}

// record loads an account and checks that this program owns it.
func (s *escrowService) record(tx ports.Tx, addr domain.Address) (*domain.Account, error) {
	acct, err := tx.Account(addr)
	if err != nil {
		return nil, err
	}
	if acct.Owner != s.cfg.ProgramID {
		return nil, fmt.Errorf("%w: %s is not owned by the escrow program", domain.ErrCorruptRecord, addr)
	}
	return acct, nil
}

func (s *escrowService) Initialize(ctx context.Context, signer domain.Address) (*domain.TreasuryRecord, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	treasury, err := s.deriver.Treasury()
	if err != nil {
		return nil, err
	}

	record := &domain.TreasuryRecord{Owner: signer}
	err = s.execute(ctx, TransitionInitialize, signer, []domain.Address{treasury}, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		exists, err := tx.Exists(treasury)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrAlreadyInitialized
		}
		if err := tx.Create(treasury, s.cfg.ProgramID, domain.EncodeTreasury(record)); err != nil {
			return nil, err
		}
		return &domain.TransitionEvent{
			Type:      domain.EventTreasuryInitialized,
			Address:   treasury,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *escrowService) CreatePaymentGroup(ctx context.Context, signer domain.Address, groupID uint64, creator domain.Address, rate uint64, discount bool) (*domain.GroupRecord, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	if creator.IsZero() {
		return nil, fmt.Errorf("%w: creator must be set", domain.ErrInvalidAddress)
	}
	if rate == 0 {
		return nil, fmt.Errorf("%w: rate", domain.ErrInvalidAmount)
	}
	groupAddr, err := s.deriver.Group(groupID)
	if err != nil {
		return nil, err
	}

	record := &domain.GroupRecord{
		GroupID:  groupID,
		Creator:  creator,
		Rate:     rate,
		Discount: discount,
	}
	err = s.execute(ctx, TransitionCreateGroup, signer, []domain.Address{groupAddr}, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		exists, err := tx.Exists(groupAddr)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrDuplicateGroup
		}
		if err := tx.Create(groupAddr, s.cfg.ProgramID, domain.EncodeGroup(record)); err != nil {
			return nil, err
		}
		return &domain.TransitionEvent{
			Type:      domain.EventGroupCreated,
			Address:   groupAddr,
			GroupID:   groupID,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *escrowService) OpenNamedStream(ctx context.Context, signer domain.Address, key domain.ByName) (*domain.StreamRecord, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	rate, err := domain.Price(uint64(key.Level), s.cfg.BaseRate)
	if err != nil {
		return nil, err
	}
	addrs, err := s.deriver.StreamAddresses(key)
	if err != nil {
		return nil, err
	}

	var record *domain.StreamRecord
	declared := []domain.Address{addrs.Stream, addrs.Holder}
	err = s.execute(ctx, TransitionOpenStream, signer, declared, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		rec := &domain.StreamRecord{
			Key:           key,
			Recipient:     signer,
			Until:         now,
			LastWithdrawn: now,
			Rate:          rate,
		}
		if err := tx.Create(addrs.Stream, s.cfg.ProgramID, domain.EncodeStream(rec)); err != nil {
			return nil, err
		}
		if err := tx.Create(addrs.Holder, s.cfg.ProgramID, nil); err != nil {
			return nil, err
		}
		record = rec
		return &domain.TransitionEvent{
			Type:      domain.EventStreamOpened,
			Address:   addrs.Stream,
			Key:       key.String(),
			Until:     now,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Pay extends key by amount time units. The first signer to pay becomes the
// stream's payer; later pays from any other signer fail with ErrUnauthorized.
func (s *escrowService) Pay(ctx context.Context, signer domain.Address, key domain.StreamKey, amount uint64) (*domain.StreamRecord, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	addrs, err := s.deriver.StreamAddresses(key)
	if err != nil {
		return nil, err
	}

	declared := []domain.Address{signer, addrs.Stream, addrs.Holder}
	if addrs.Group != nil {
		declared = append(declared, *addrs.Group)
	}

	var record *domain.StreamRecord
	err = s.execute(ctx, TransitionPay, signer, declared, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		rec, created, err := s.streamForPay(tx, key, addrs, signer, now)
		if err != nil {
			return nil, err
		}

		next, err := rec.Extended(amount)
		if err != nil {
			return nil, err
		}
		value, err := domain.Price(amount, rec.Rate)
		if err != nil {
			return nil, err
		}
		if err := checkBalance(tx, signer, value); err != nil {
			return nil, err
		}

		if created {
			if err := tx.Create(addrs.Stream, s.cfg.ProgramID, nil); err != nil {
				return nil, err
			}
			if err := tx.Create(addrs.Holder, s.cfg.ProgramID, nil); err != nil {
				return nil, err
			}
		}
		if err := tx.SetData(addrs.Stream, domain.EncodeStream(next)); err != nil {
			return nil, err
		}
		if err := tx.Transfer(signer, addrs.Holder, value); err != nil {
			return nil, err
		}

		record = next
		return &domain.TransitionEvent{
			Type:      domain.EventStreamPaid,
			Address:   addrs.Stream,
			Key:       key.String(),
			Amount:    amount,
			Value:     value,
			Until:     next.Until,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// streamForPay returns the stream to extend. A ById stream that does not exist
// yet is built from its group; a named stream must have been opened. Once a
// stream has a payer, nobody else may fund it: cancel refunds go to the payer.
func (s *escrowService) streamForPay(tx ports.Tx, key domain.StreamKey, addrs *domain.StreamAddresses, signer domain.Address, now uint64) (*domain.StreamRecord, bool, error) {
	acct, err := s.record(tx, addrs.Stream)
	if err == nil {
		rec, err := domain.DecodeStream(acct.Data)
		if err != nil {
			return nil, false, err
		}
		switch {
		case rec.Payer.IsZero():
			rec.Payer = signer
		case rec.Payer != signer:
			return nil, false, fmt.Errorf("stream %s is funded by %s: %w", key, rec.Payer, domain.ErrUnauthorized)
		}
		return rec, false, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, false, err
	}

	byID, ok := key.(domain.ByID)
	if !ok || addrs.Group == nil {
		return nil, false, fmt.Errorf("stream %s: %w", key, domain.ErrRecordNotFound)
	}
	groupAcct, err := s.record(tx, *addrs.Group)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("group %d: %w", byID.GroupID, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, false, err
	}
	group, err := domain.DecodeGroup(groupAcct.Data)
	if err != nil {
		return nil, false, err
	}

	return &domain.StreamRecord{
		Key:           key,
		Payer:         signer,
		Recipient:     group.Creator,
		Until:         now,
		LastWithdrawn: now,
		Rate:          group.Rate,
	}, true, nil
}

func checkBalance(tx ports.Tx, addr domain.Address, value uint64) error {
	if value == 0 {
		return nil
	}
	acct, err := tx.Account(addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if acct.Balance < value {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (s *escrowService) loadStream(tx ports.Tx, key domain.StreamKey, addr domain.Address) (*domain.StreamRecord, error) {
	acct, err := s.record(tx, addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("stream %s: %w", key, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return domain.DecodeStream(acct.Data)
}

func (s *escrowService) Cancel(ctx context.Context, signer domain.Address, key domain.StreamKey, amount uint64) (*domain.StreamRecord, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	addrs, err := s.deriver.StreamAddresses(key)
	if err != nil {
		return nil, err
	}

	var record *domain.StreamRecord
	declared := []domain.Address{signer, addrs.Stream, addrs.Holder}
	err = s.execute(ctx, TransitionCancel, signer, declared, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		rec, err := s.loadStream(tx, key, addrs.Stream)
		if err != nil {
			return nil, err
		}
		if rec.Payer != signer {
			return nil, domain.ErrUnauthorized
		}

		next, err := rec.Shortened(now, amount)
		if err != nil {
			return nil, err
		}
		value, err := domain.Price(amount, rec.Rate)
		if err != nil {
			return nil, err
		}
		if err := checkBalance(tx, addrs.Holder, value); err != nil {
			return nil, err
		}

		if err := tx.SetData(addrs.Stream, domain.EncodeStream(next)); err != nil {
			return nil, err
		}
		if err := tx.Transfer(addrs.Holder, signer, value); err != nil {
			return nil, err
		}

		record = next
		return &domain.TransitionEvent{
			Type:      domain.EventStreamCancelled,
			Address:   addrs.Stream,
			Key:       key.String(),
			Amount:    amount,
			Value:     value,
			Until:     next.Until,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *escrowService) Withdraw(ctx context.Context, signer domain.Address, key domain.StreamKey) (*domain.Withdrawal, error) {
	if err := checkSigner(signer); err != nil {
		return nil, err
	}
	addrs, err := s.deriver.StreamAddresses(key)
	if err != nil {
		return nil, err
	}

	var result *domain.Withdrawal
	declared := []domain.Address{signer, addrs.Stream, addrs.Holder}
	err = s.execute(ctx, TransitionWithdraw, signer, declared, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		rec, err := s.loadStream(tx, key, addrs.Stream)
		if err != nil {
			return nil, err
		}
		if rec.Recipient != signer {
			return nil, domain.ErrUnauthorized
		}
		holder, err := s.record(tx, addrs.Holder)
		if err != nil {
			return nil, err
		}

		value, err := rec.AccruedValue(now, holder.Balance)
		if err != nil {
			return nil, err
		}
		if value == 0 {
			if !s.cfg.AllowEmptyWithdraw {
				return nil, domain.ErrNothingToWithdraw
			}
			result = &domain.Withdrawal{Stream: rec}
			return nil, nil
		}

		next, _ := rec.Settled(now)
		if err := tx.SetData(addrs.Stream, domain.EncodeStream(next)); err != nil {
			return nil, err
		}
		if err := tx.Transfer(addrs.Holder, signer, value); err != nil {
			return nil, err
		}

		result = &domain.Withdrawal{Stream: next, Value: value}
		return &domain.TransitionEvent{
			Type:      domain.EventStreamWithdrawn,
			Address:   addrs.Stream,
			Key:       key.String(),
			Value:     value,
			Until:     next.Until,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *escrowService) WithdrawProgramFunds(ctx context.Context, signer domain.Address) (uint64, error) {
	if err := checkSigner(signer); err != nil {
		return 0, err
	}
	treasury, err := s.deriver.Treasury()
	if err != nil {
		return 0, err
	}

	var swept uint64
	err = s.execute(ctx, TransitionWithdrawFunds, signer, []domain.Address{signer, treasury}, func(tx ports.Tx, now uint64) (*domain.TransitionEvent, error) {
		acct, err := s.record(tx, treasury)
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("treasury: %w", domain.ErrRecordNotFound)
		}
		if err != nil {
			return nil, err
		}
		rec, err := domain.DecodeTreasury(acct.Data)
		if err != nil {
			return nil, err
		}
		if rec.Owner != signer {
			return nil, domain.ErrUnauthorized
		}
		if acct.Balance == 0 {
			return nil, nil
		}

		swept = acct.Balance
		if err := tx.Transfer(treasury, signer, swept); err != nil {
			return nil, err
		}
		return &domain.TransitionEvent{
			Type:      domain.EventTreasurySwept,
			Address:   treasury,
			Value:     swept,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

func (s *escrowService) readRecord(ctx context.Context, addr domain.Address, what string) (*domain.Account, error) {
	acct, err := s.ledger.Account(ctx, addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", what, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", what, err)
	}
	if acct.Owner != s.cfg.ProgramID {
		return nil, fmt.Errorf("%w: %s is not owned by the escrow program", domain.ErrCorruptRecord, addr)
	}
	return acct, nil
}

func (s *escrowService) GetGroup(ctx context.Context, groupID uint64) (*domain.GroupRecord, error) {
	addr, err := s.deriver.Group(groupID)
	if err != nil {
		return nil, err
	}
	acct, err := s.readRecord(ctx, addr, fmt.Sprintf("group %d", groupID))
	if err != nil {
		return nil, err
	}
	return domain.DecodeGroup(acct.Data)
}

func (s *escrowService) GetStream(ctx context.Context, key domain.StreamKey) (*domain.StreamView, error) {
	addrs, err := s.deriver.StreamAddresses(key)
	if err != nil {
		return nil, err
	}
	acct, err := s.readRecord(ctx, addrs.Stream, "stream "+key.String())
	if err != nil {
		return nil, err
	}
	rec, err := domain.DecodeStream(acct.Data)
	if err != nil {
		return nil, err
	}

	var holderBalance uint64
	holder, err := s.ledger.Account(ctx, addrs.Holder)
	switch {
	case err == nil:
		holderBalance = holder.Balance
	case !errors.Is(err, domain.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to read holder: %w", err)
	}

	now := s.clock.Now()
	accrued, err := rec.AccruedValue(now, holderBalance)
	if err != nil {
		return nil, err
	}
	return &domain.StreamView{
		Stream:        rec,
		Address:       addrs.Stream,
		HolderAddress: addrs.Holder,
		HolderBalance: holderBalance,
		AccruedValue:  accrued,
		Unearned:      rec.Unearned(now),
		Now:           now,
	}, nil
}

func (s *escrowService) GetTreasury(ctx context.Context) (*domain.TreasuryView, error) {
	addr, err := s.deriver.Treasury()
	if err != nil {
		return nil, err
	}
	acct, err := s.readRecord(ctx, addr, "treasury")
	if err != nil {
		return nil, err
	}
	rec, err := domain.DecodeTreasury(acct.Data)
	if err != nil {
		return nil, err
	}
	return &domain.TreasuryView{
		Address: addr,
		Owner:   rec.Owner,
		Balance: acct.Balance,
	}, nil
}

func (s *escrowService) DeriveAddresses(key domain.StreamKey) (*domain.StreamAddresses, error) {
	return s.deriver.StreamAddresses(key)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransition(string, error, time.Duration) {}
func (noopMetrics) AddValueMoved(string, uint64)                   {}
func (noopMetrics) IncPublishFailures()                            {}
