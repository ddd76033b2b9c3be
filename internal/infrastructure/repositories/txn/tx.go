// Package txn implements the staging view shared by ledger backends. Reads go
// through a loader once per address and every write stays in the stage until
// the backend commits Dirty().
package txn

import (
	"errors"
	"fmt"
	"sort"

	"streampay/internal/core/domain"
)

type Loader func(addr domain.Address) (*domain.Account, error)

type Tx struct {
	declared map[domain.Address]struct{}
	load     Loader

	working map[domain.Address]*domain.Account
	absent  map[domain.Address]bool
	dirty   map[domain.Address]bool
}

func New(declared []domain.Address, load Loader) *Tx {
	t := &Tx{
		declared: make(map[domain.Address]struct{}, len(declared)),
		load:     load,
		working:  make(map[domain.Address]*domain.Account),
		absent:   make(map[domain.Address]bool),
		dirty:    make(map[domain.Address]bool),
	}
	for _, addr := range declared {
		t.declared[addr] = struct{}{}
	}
	return t
}

// Declared returns the declared addresses in a stable order, which is also
// the order backends lock them in.
func Declared(addrs []domain.Address) []domain.Address {
	seen := make(map[domain.Address]struct{}, len(addrs))
	out := make([]domain.Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i][:]) < string(out[j][:])
	})
	return out
}

func (t *Tx) get(addr domain.Address) (*domain.Account, error) {
	if _, ok := t.declared[addr]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUndeclaredAccount, addr)
	}
	if acct, ok := t.working[addr]; ok {
		return acct, nil
	}
	if t.absent[addr] {
		return nil, domain.ErrRecordNotFound
	}

	acct, err := t.load(addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		t.absent[addr] = true
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", addr, err)
	}
	acct = acct.Clone()
	t.working[addr] = acct
	return acct, nil
}

func (t *Tx) put(acct *domain.Account) {
	t.working[acct.Address] = acct
	delete(t.absent, acct.Address)
	t.dirty[acct.Address] = true
}

func (t *Tx) Account(addr domain.Address) (*domain.Account, error) {
	acct, err := t.get(addr)
	if err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

func (t *Tx) Exists(addr domain.Address) (bool, error) {
	_, err := t.get(addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *Tx) Create(addr, owner domain.Address, data []byte) error {
	exists, err := t.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, addr)
	}
	t.put(&domain.Account{
		Address: addr,
		Owner:   owner,
		Data:    append([]byte(nil), data...),
	})
	return nil
}

func (t *Tx) SetData(addr domain.Address, data []byte) error {
	acct, err := t.get(addr)
	if err != nil {
		return err
	}
	acct.Data = append([]byte(nil), data...)
	t.put(acct)
	return nil
}

// Transfer moves value between accounts. A missing destination is created as
// a system-owned account.
func (t *Tx) Transfer(from, to domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src, err := t.get(from)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s has no balance", domain.ErrInsufficientFunds, from)
	}
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", domain.ErrInsufficientFunds, from, src.Balance, amount)
	}
	if from == to {
		return nil
	}

	dst, err := t.get(to)
	if errors.Is(err, domain.ErrRecordNotFound) {
		dst = &domain.Account{Address: to, Owner: domain.SystemProgram}
	} else if err != nil {
		return err
	}
	credited, err := domain.CheckedAdd(dst.Balance, amount)
	if err != nil {
		return err
	}

	src.Balance -= amount
	dst.Balance = credited
	t.put(src)
	t.put(dst)
	return nil
}

// Mint credits value out of thin air. Backends use it for dev funding only.
// Program addresses are refused: a system account minted there would squat on
// the record the program creates later.
func (t *Tx) Mint(addr domain.Address, amount uint64) error {
	if !addr.OnCurve() {
		return fmt.Errorf("cannot fund %s: %w", addr, domain.ErrOffCurveAddress)
	}
	acct, err := t.get(addr)
	if errors.Is(err, domain.ErrRecordNotFound) {
		acct = &domain.Account{Address: addr, Owner: domain.SystemProgram}
	} else if err != nil {
		return err
	}
	balance, err := domain.CheckedAdd(acct.Balance, amount)
	if err != nil {
		return err
	}
	acct.Balance = balance
	t.put(acct)
	return nil
}

// Dirty returns the accounts written by the execution, ordered by address.
func (t *Tx) Dirty() []*domain.Account {
	addrs := make([]domain.Address, 0, len(t.dirty))
	for addr := range t.dirty {
		addrs = append(addrs, addr)
	}
	addrs = Declared(addrs)

	out := make([]*domain.Account, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, t.working[addr].Clone())
	}
	return out
}
