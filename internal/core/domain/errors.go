package domain

import "errors"

var (
	ErrAlreadyInitialized    = errors.New("treasury already initialized")
	ErrDuplicateGroup        = errors.New("payment group already exists")
	ErrExcessiveCancellation = errors.New("cancellation exceeds unearned stream time")
	ErrUnauthorized          = errors.New("signer is not authorized for this transition")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrRecordNotFound        = errors.New("record not found")

	ErrInvalidLevel      = errors.New("level cannot be less than 1")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrOffCurveAddress   = errors.New("address is off the ed25519 curve")
	ErrInvalidStreamKey  = errors.New("invalid stream key")
	ErrNothingToWithdraw = errors.New("nothing accrued to withdraw")

	// Ledger substrate failures.
	ErrInvalidSeeds      = errors.New("invalid program address seeds")
	ErrAccountExists     = errors.New("account already exists")
	ErrUndeclaredAccount = errors.New("account was not declared for this execution")
	ErrCorruptRecord     = errors.New("corrupt record data")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrDuplicateGroup, "duplicate_group"},
	{ErrExcessiveCancellation, "excessive_cancellation"},
	{ErrUnauthorized, "unauthorized"},
	{ErrArithmeticOverflow, "arithmetic_overflow"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrRecordNotFound, "record_not_found"},
	{ErrInvalidLevel, "invalid_level"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidAddress, "invalid_address"},
	{ErrOffCurveAddress, "off_curve_address"},
	{ErrInvalidStreamKey, "invalid_stream_key"},
	{ErrNothingToWithdraw, "nothing_to_withdraw"},
	{ErrAccountExists, "account_exists"},
	{ErrCorruptRecord, "corrupt_record"},
}

// Kind names the failure kind of err for logs and metric labels. Errors
// outside the taxonomy are "internal"; nil is "ok".
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
