package fundraiser

import "errors"

var (
	// ErrUnknownCampaign is returned when an operation references a campaign id
	// that was never issued or has been retired by a withdrawal.
	ErrUnknownCampaign = errors.New("fundraiser: unknown campaign")
	// ErrAlreadyFullyFunded rejects contributions once the accumulated amount
	// has reached the target.
	ErrAlreadyFullyFunded = errors.New("fundraiser: campaign already fully funded")
	// ErrNotFullyFunded rejects withdrawal attempts before the target is met.
	ErrNotFullyFunded = errors.New("fundraiser: funding target not reached")
	// ErrNotBeneficiary rejects withdrawal attempts by anyone other than the
	// registered beneficiary.
	ErrNotBeneficiary = errors.New("fundraiser: caller is not the beneficiary")
	// ErrInsufficientVaultBalance signals that the ledger's bookkeeping exceeds
	// the value actually held in the module vault. This is a consistency
	// failure, not a caller mistake.
	ErrInsufficientVaultBalance = errors.New("fundraiser: raised amount exceeds held balance")
	// ErrAllocatorExhausted means the campaign id space is spent. The registry
	// can never issue another id.
	ErrAllocatorExhausted = errors.New("fundraiser: campaign ids exhausted")
	// ErrAmountOverflow aborts a contribution whose accumulated total would
	// exceed the representable amount range.
	ErrAmountOverflow = errors.New("fundraiser: contribution amount overflow")
	// ErrInsufficientFunds means the contributing account does not hold the
	// value it tried to attach.
	ErrInsufficientFunds = errors.New("fundraiser: insufficient balance")
	// ErrTransferFailed wraps a failure of the value-transfer primitive during
	// withdrawal; ledger state is left untouched so the call can be retried.
	ErrTransferFailed = errors.New("fundraiser: transfer failed")
)
