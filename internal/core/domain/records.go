package domain

// Account is the substrate's unit of storage: a value balance plus opaque
// record data owned by a program.
type Account struct {
	Address Address `json:"address"`
	Owner   Address `json:"owner"`
	Balance uint64  `json:"balance"`
	Data    []byte  `json:"data,omitempty"`
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Data != nil {
		out.Data = append([]byte(nil), a.Data...)
	}
	return &out
}

type GroupRecord struct {
	GroupID  uint64
	Creator  Address
	Rate     uint64
	Discount bool
}

// StreamRecord is the accrual state of one stream. Value held for the stream
// lives in the co-located holder account, not here.
type StreamRecord struct {
	Key           StreamKey
	Payer         Address
	Recipient     Address
	Until         uint64
	LastWithdrawn uint64
	// Rate is fixed when the stream is created.
	Rate uint64
}

type TreasuryRecord struct {
	Owner Address
}

type StreamView struct {
	Stream        *StreamRecord
	Address       Address
	HolderAddress Address
	HolderBalance uint64
	AccruedValue  uint64
	Unearned      uint64
	Now           uint64
}

type TreasuryView struct {
	Address Address
	Owner   Address
	Balance uint64
}

type Withdrawal struct {
	Stream *StreamRecord
	Value  uint64
}
