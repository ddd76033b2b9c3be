package domain

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgramID = MustParseAddress("ALG2KRazJ9Gnh6Tyndq4eEDR4tsqP91uC8gmfWEgmxXo")

func TestFindProgramAddress_KnownVector(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("helloWorld")}, SystemProgram)
	require.NoError(t, err)
	assert.Equal(t, "46GZzzetjCURsdFPb7rcnspbEMnCBXe9kpjrsZAkKb6X", addr.String())
	assert.Equal(t, uint8(254), bump)
}

func TestDeriver_RecordAddresses(t *testing.T) {
	d := NewDeriver(testProgramID)

	tests := []struct {
		name   string
		derive func() (Address, error)
		want   string
	}{
		{"treasury", d.Treasury, "AJHa6hQ4gwaxUwiiPHXWdQFTi5ftkxNUjbYbcByXscPf"},
		{"group 26", func() (Address, error) { return d.Group(26) }, "RAkjrwrDYLRCFMz9R1ZckzSNsuJRNwRT3bkRWUjdjD6"},
		{"group 100", func() (Address, error) { return d.Group(100) }, "6LCg1pyar6FnUfV4wrjy8mqR8JZR5BqwA5UtYxL12JdZ"},
		{"stream by id", func() (Address, error) {
			return d.Stream(ByID{GroupID: 100, StreamID: 100, Level: 1})
		}, "E4Z5LBdorwUXea3KYVuHTzFNJDsbcSewCbUyich4YEEi"},
		{"holder by id", func() (Address, error) {
			return d.Holder(ByID{GroupID: 100, StreamID: 100, Level: 1})
		}, "59pstZf8KfWVfYrk1BdKijZJJkhrraaVbQ9mDeLaP5yk"},
		{"stream by name", func() (Address, error) {
			return d.Stream(ByName{Name: "lens", Level: 2})
		}, "C1dGAzNku32D8dQf3AWDxziPYj93wphRS4cmG1NvJnYb"},
		{"holder by name", func() (Address, error) {
			return d.Holder(ByName{Name: "lens", Level: 2})
		}, "AVnYpfMCAHs7Gin32s4tEhMVH79dq6U8DUeXrhcPjKNs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := tt.derive()
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
			assert.False(t, isOnCurve(addr))
		})
	}
}

func TestDeriver_StreamAndHolderDiffer(t *testing.T) {
	d := NewDeriver(testProgramID)
	key := ByID{GroupID: 1, StreamID: 2, Level: 3}

	addrs, err := d.StreamAddresses(key)
	require.NoError(t, err)
	assert.NotEqual(t, addrs.Stream, addrs.Holder)
	require.NotNil(t, addrs.Group)

	named, err := d.StreamAddresses(ByName{Name: "x", Level: 3})
	require.NoError(t, err)
	assert.Nil(t, named.Group)
}

func TestCreateProgramAddress_SeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, testProgramID)
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	seeds := make([][]byte, MaxSeeds+1)
	for i := range seeds {
		seeds[i] = []byte{byte(i)}
	}
	_, err = CreateProgramAddress(seeds, testProgramID)
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}

func TestDeriver_RejectsInvalidKeys(t *testing.T) {
	d := NewDeriver(testProgramID)

	_, err := d.Stream(ByID{GroupID: 1, StreamID: 1, Level: 0})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = d.Holder(ByName{Name: string(bytes.Repeat([]byte("n"), 33)), Level: 1})
	assert.ErrorIs(t, err, ErrInvalidStreamKey)
}

func TestAddress_OnCurve(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	var wallet Address
	copy(wallet[:], ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey))
	assert.True(t, wallet.OnCurve())

	addrs, err := NewDeriver(testProgramID).StreamAddresses(ByID{GroupID: 100, StreamID: 100, Level: 1})
	require.NoError(t, err)
	assert.False(t, addrs.Stream.OnCurve())
	assert.False(t, addrs.Holder.OnCurve())
	assert.False(t, addrs.Treasury.OnCurve())
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, addr.IsZero())

	_, err = ParseAddress("not-base58!")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("2g")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	text, err := testProgramID.MarshalText()
	require.NoError(t, err)
	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, testProgramID, back)
}
