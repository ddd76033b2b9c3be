package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	keyVariantByID   uint8 = 0
	keyVariantByName uint8 = 1
)

var (
	groupDiscriminator    = discriminator("GroupRecord")
	streamDiscriminator   = discriminator("StreamRecord")
	treasuryDiscriminator = discriminator("TreasuryRecord")
)

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

type recordWriter struct {
	buf []byte
}

func newRecordWriter(d [8]byte, size int) *recordWriter {
	w := &recordWriter{buf: make([]byte, 0, 8+size)}
	w.buf = append(w.buf, d[:]...)
	return w
}

func (w *recordWriter) u8(v uint8) { w.buf = append(w.buf, v) }
func (w *recordWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *recordWriter) address(a Address) { w.buf = append(w.buf, a[:]...) }
func (w *recordWriter) boolean(v bool) { w.u8(boolByte(v)) }
func (w *recordWriter) str(s string) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}

// recordReader keeps the first error and turns every later read into a no-op.
type recordReader struct {
	data []byte
	err  error
}

func newRecordReader(data []byte, d [8]byte, name string) *recordReader {
	r := &recordReader{data: data}
	if len(data) < 8 || [8]byte(data[:8]) != d {
		r.err = fmt.Errorf("%w: not a %s", ErrCorruptRecord, name)
		return r
	}
	r.data = data[8:]
	return r
}

func (r *recordReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = fmt.Errorf("%w: truncated", ErrCorruptRecord)
		return nil
	}
	out := r.data[:n]
	r.data = r.data[n:]
	return out
}

func (r *recordReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *recordReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *recordReader) address() Address {
	var a Address
	if b := r.take(AddressLength); b != nil {
		copy(a[:], b)
	}
	return a
}

func (r *recordReader) str() string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	return string(r.take(int(binary.LittleEndian.Uint32(b))))
}

func (r *recordReader) done() error {
	if r.err == nil && len(r.data) != 0 {
		r.err = fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, len(r.data))
	}
	return r.err
}

func EncodeGroup(g *GroupRecord) []byte {
	w := newRecordWriter(groupDiscriminator, 8+32+8+1)
	w.u64(g.GroupID)
	w.address(g.Creator)
	w.u64(g.Rate)
	w.boolean(g.Discount)
	return w.buf
}

func DecodeGroup(data []byte) (*GroupRecord, error) {
	r := newRecordReader(data, groupDiscriminator, "group record")
	g := &GroupRecord{
		GroupID: r.u64(),
		Creator: r.address(),
		Rate:    r.u64(),
	}
	g.Discount = r.u8() == 1
	if err := r.done(); err != nil {
		return nil, err
	}
	return g, nil
}

func EncodeStream(s *StreamRecord) []byte {
	w := newRecordWriter(streamDiscriminator, 1+8+8+4+MaxSeedLength+1+32+32+8+8+8)
	switch k := s.Key.(type) {
	case ByID:
		w.u8(keyVariantByID)
		w.u64(k.GroupID)
		w.u64(k.StreamID)
		w.str("")
	case ByName:
		w.u8(keyVariantByName)
		w.u64(0)
		w.u64(0)
		w.str(k.Name)
	}
	w.u8(s.Key.KeyLevel())
	w.address(s.Payer)
	w.address(s.Recipient)
	w.u64(s.Until)
	w.u64(s.LastWithdrawn)
	w.u64(s.Rate)
	return w.buf
}

func DecodeStream(data []byte) (*StreamRecord, error) {
	r := newRecordReader(data, streamDiscriminator, "stream record")
	variant := r.u8()
	groupID := r.u64()
	streamID := r.u64()
	name := r.str()
	level := r.u8()

	s := &StreamRecord{
		Payer:         r.address(),
		Recipient:     r.address(),
		Until:         r.u64(),
		LastWithdrawn: r.u64(),
		Rate:          r.u64(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}

	switch variant {
	case keyVariantByID:
		s.Key = ByID{GroupID: groupID, StreamID: streamID, Level: level}
	case keyVariantByName:
		s.Key = ByName{Name: name, Level: level}
	default:
		return nil, fmt.Errorf("%w: unknown key variant %d", ErrCorruptRecord, variant)
	}
	return s, nil
}

func EncodeTreasury(t *TreasuryRecord) []byte {
	w := newRecordWriter(treasuryDiscriminator, 32)
	w.address(t.Owner)
	return w.buf
}

func DecodeTreasury(data []byte) (*TreasuryRecord, error) {
	r := newRecordReader(data, treasuryDiscriminator, "treasury record")
	t := &TreasuryRecord{Owner: r.address()}
	if err := r.done(); err != nil {
		return nil, err
	}
	return t, nil
}
