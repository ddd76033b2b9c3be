package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const AddressLength = 32

// Address identifies an account on the ledger. Signers and derived records
// share the same address space.
type Address [AddressLength]byte

// SystemProgram owns plain value-holding accounts.
var SystemProgram = Address{}

func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	if len(raw) != AddressLength {
		return a, fmt.Errorf("%w %q: decoded to %d bytes", ErrInvalidAddress, s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
