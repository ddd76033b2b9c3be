package domain

import "fmt"

// StreamKey identifies a stream either by numeric group and stream id or by
// name. Address derivation branches on the variant.
type StreamKey interface {
	Seeds(tag string) [][]byte
	KeyLevel() uint8
	Validate() error
	String() string
	isStreamKey()
}

type ByID struct {
	GroupID  uint64
	StreamID uint64
	Level    uint8
}

type ByName struct {
	Name  string
	Level uint8
}

func (k ByID) Seeds(tag string) [][]byte {
	return [][]byte{[]byte(tag), u64le(k.GroupID), u64le(k.StreamID), {k.Level}}
}

func (k ByID) KeyLevel() uint8 { return k.Level }

func (k ByID) Validate() error {
	if k.Level < 1 {
		return ErrInvalidLevel
	}
	return nil
}

func (k ByID) String() string {
	return fmt.Sprintf("group:%d/stream:%d/level:%d", k.GroupID, k.StreamID, k.Level)
}

func (ByID) isStreamKey() {}

func (k ByName) Seeds(tag string) [][]byte {
	return [][]byte{[]byte(tag), []byte(k.Name), {k.Level}}
}

func (k ByName) KeyLevel() uint8 { return k.Level }

func (k ByName) Validate() error {
	if k.Name == "" || len(k.Name) > MaxSeedLength {
		return fmt.Errorf("%w: name must be 1-%d bytes", ErrInvalidStreamKey, MaxSeedLength)
	}
	if k.Level < 1 {
		return ErrInvalidLevel
	}
	return nil
}

func (k ByName) String() string {
	return fmt.Sprintf("name:%s/level:%d", k.Name, k.Level)
}

func (ByName) isStreamKey() {}
