package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

const (
	MaxSeeds      = 16
	MaxSeedLength = 32

	SeedGroup    = "group"
	SeedPayment  = "payment"
	SeedHolder   = "holder"
	SeedTreasury = "treasury"

	programAddressMarker = "ProgramDerivedAddress"
)

var errOnCurve = errors.New("derived address lies on the ed25519 curve")

// CreateProgramAddress hashes seeds with the program id. Results that are valid
// ed25519 points are rejected so no private key can exist for the address.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	var out Address
	if len(seeds) > MaxSeeds {
		return out, fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return out, fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrInvalidSeeds, i, len(seed), MaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(programAddressMarker))
	copy(out[:], h.Sum(nil))

	if isOnCurve(out) {
		return Address{}, errOnCurve
	}
	return out, nil
}

// FindProgramAddress appends a bump seed, starting at 255 and counting down,
// until the derived address falls off the curve.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, errOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, fmt.Errorf("%w: no viable bump seed", ErrInvalidSeeds)
}

// OnCurve reports whether a is an ed25519 public key a wallet can sign for.
// Program addresses never are.
func (a Address) OnCurve() bool {
	return isOnCurve(a)
}

func isOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func GroupSeeds(groupID uint64) [][]byte {
	return [][]byte{[]byte(SeedGroup), u64le(groupID)}
}

func TreasurySeeds() [][]byte {
	return [][]byte{[]byte(SeedTreasury)}
}

// Deriver derives record addresses for one program.
type Deriver struct {
	ProgramID Address
}

func NewDeriver(programID Address) Deriver {
	return Deriver{ProgramID: programID}
}

func (d Deriver) Group(groupID uint64) (Address, error) {
	addr, _, err := FindProgramAddress(GroupSeeds(groupID), d.ProgramID)
	return addr, err
}

func (d Deriver) Treasury() (Address, error) {
	addr, _, err := FindProgramAddress(TreasurySeeds(), d.ProgramID)
	return addr, err
}

func (d Deriver) Stream(key StreamKey) (Address, error) {
	if err := key.Validate(); err != nil {
		return Address{}, err
	}
	addr, _, err := FindProgramAddress(key.Seeds(SeedPayment), d.ProgramID)
	return addr, err
}

func (d Deriver) Holder(key StreamKey) (Address, error) {
	if err := key.Validate(); err != nil {
		return Address{}, err
	}
	addr, _, err := FindProgramAddress(key.Seeds(SeedHolder), d.ProgramID)
	return addr, err
}

// StreamAddresses is the full lookup set for a stream key.
type StreamAddresses struct {
	Stream   Address
	Holder   Address
	Group    *Address
	Treasury Address
}

func (d Deriver) StreamAddresses(key StreamKey) (*StreamAddresses, error) {
	stream, err := d.Stream(key)
	if err != nil {
		return nil, err
	}
	holder, err := d.Holder(key)
	if err != nil {
		return nil, err
	}
	treasury, err := d.Treasury()
	if err != nil {
		return nil, err
	}

	out := &StreamAddresses{Stream: stream, Holder: holder, Treasury: treasury}
	if byID, ok := key.(ByID); ok {
		group, err := d.Group(byID.GroupID)
		if err != nil {
			return nil, err
		}
		out.Group = &group
	}
	return out, nil
}
