package domain

type EventType string

const (
	EventTreasuryInitialized EventType = "treasury.initialized"
	EventGroupCreated        EventType = "group.created"
	EventStreamOpened        EventType = "stream.opened"
	EventStreamPaid          EventType = "stream.paid"
	EventStreamCancelled     EventType = "stream.cancelled"
	EventStreamWithdrawn     EventType = "stream.withdrawn"
	EventTreasurySwept       EventType = "treasury.swept"
)

// TransitionEvent describes one committed transition.
type TransitionEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
	Signer     Address   `json:"signer"`
	Address    Address   `json:"address"`
	Key        string    `json:"key,omitempty"`
	GroupID    uint64    `json:"group_id,omitempty"`
	// Amount is in time units, Value in the ledger's smallest value unit.
	Amount    uint64 `json:"amount,omitempty"`
	Value     uint64 `json:"value,omitempty"`
	Until     uint64 `json:"until,omitempty"`
	Timestamp uint64 `json:"timestamp"`
}
