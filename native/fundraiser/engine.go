package fundraiser

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"

	"fundvault/core/events"
	"fundvault/core/types"
)

var errNilState = errors.New("fundraiser engine: state not configured")

type engineState interface {
	CampaignPut(*Campaign) error
	CampaignGet(id CampaignID) (*Campaign, bool)
	CampaignDelete(id CampaignID) error
	ContributionGet(id CampaignID) (*uint256.Int, bool)
	ContributionPut(id CampaignID, amount *uint256.Int) error
	ContributionDelete(id CampaignID) error
	CampaignNextID() (uint64, error)
	CampaignSetNextID(uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	VaultAddress() [20]byte
}

type fundraiserEvent struct {
	evt *types.Event
}

func (e fundraiserEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e fundraiserEvent) Event() *types.Event { return e.evt }

// Engine owns the funding-ledger state machine: campaign registration with a
// monotonic id allocator, per-campaign contribution accumulation, and the
// guarded withdrawal that releases vault funds to the beneficiary.
//
// Callers are expected to be serialized by the hosting runtime; every method
// either fully applies or fails with no state change. The authenticated caller
// and the attached value are explicit parameters supplied by the harness, never
// untrusted request data.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a fundraiser engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(fundraiserEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: uint256.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = uint256.NewInt(0)
	}
	return acc
}

// transfer moves value between two accounts with checked arithmetic. A zero
// amount is a no-op.
func (e *Engine) transfer(from, to [20]byte, amount *uint256.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneAmount(amount)
	if amt.IsZero() {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Lt(amt) {
		return ErrInsufficientFunds
	}
	credited, overflow := new(uint256.Int).AddOverflow(toAcc.Balance, amt)
	if overflow {
		return ErrAmountOverflow
	}
	fromAcc.Balance = new(uint256.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = credited
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// Register allocates the next campaign id and persists the immutable campaign
// terms. The caller becomes the beneficiary. A zero target is accepted; such a
// campaign is born fully funded, so contributions are rejected and the
// beneficiary may withdraw immediately.
//
// The id allocator is monotonic and never reuses ids. Once the counter reaches
// its maximum, registration fails permanently with ErrAllocatorExhausted and
// the counter is left untouched.
func (e *Engine) Register(caller [20]byte, target *uint256.Int) (CampaignID, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	next, err := e.state.CampaignNextID()
	if err != nil {
		return 0, err
	}
	if next == math.MaxUint64 {
		return 0, ErrAllocatorExhausted
	}
	campaign := &Campaign{
		ID:          CampaignID(next),
		Beneficiary: caller,
		Target:      cloneAmount(target),
		CreatedAt:   e.now(),
	}
	if err := e.state.CampaignSetNextID(next + 1); err != nil {
		return 0, err
	}
	if err := e.state.CampaignPut(campaign); err != nil {
		return 0, err
	}
	e.emit(NewRegisteredEvent(campaign))
	return campaign.ID, nil
}

// GetCampaign returns the stored campaign terms, or false if the id was never
// issued or has been retired by a withdrawal.
func (e *Engine) GetCampaign(id CampaignID) (*Campaign, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.CampaignGet(id)
}

// FundingStatus returns the accumulated contribution amount for a campaign, or
// false if no contribution has been recorded yet.
func (e *Engine) FundingStatus(id CampaignID) (*uint256.Int, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.ContributionGet(id)
}

// Contribute accumulates the attached value against a campaign. The check is
// made against the accumulated amount at call time: a contribution is accepted
// whenever the campaign is not yet fully funded, even if the result overshoots
// the target. Callers that want to avoid over-funding should consult
// FundingStatus first.
//
// The attached value is moved from the contributor to the module vault only
// after every precondition has passed, so a failed call leaves no state change.
func (e *Engine) Contribute(id CampaignID, caller [20]byte, value *uint256.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	campaign, ok := e.state.CampaignGet(id)
	if !ok {
		return ErrUnknownCampaign
	}
	raised := uint256.NewInt(0)
	if current, ok := e.state.ContributionGet(id); ok {
		raised = cloneAmount(current)
	}
	target := cloneAmount(campaign.Target)
	if raised.Cmp(target) >= 0 {
		return ErrAlreadyFullyFunded
	}
	amount := cloneAmount(value)
	total, overflow := new(uint256.Int).AddOverflow(raised, amount)
	if overflow {
		return ErrAmountOverflow
	}
	if err := e.transfer(caller, e.state.VaultAddress(), amount); err != nil {
		return err
	}
	if err := e.state.ContributionPut(id, total); err != nil {
		return err
	}
	e.emit(NewContributedEvent(campaign, caller, amount, total))
	return nil
}

// Withdraw releases the accumulated amount to the beneficiary and retires the
// campaign. Preconditions are checked in order: the campaign must exist, the
// caller must be the beneficiary, the target must be met, and the vault must
// actually hold at least the raised amount. The transfer happens before any
// record is deleted; if it fails the ledger is untouched and the beneficiary
// may retry.
func (e *Engine) Withdraw(id CampaignID, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	campaign, ok := e.state.CampaignGet(id)
	if !ok {
		return ErrUnknownCampaign
	}
	if campaign.Beneficiary != caller {
		return ErrNotBeneficiary
	}
	raised := uint256.NewInt(0)
	if current, ok := e.state.ContributionGet(id); ok {
		raised = cloneAmount(current)
	}
	if raised.Cmp(cloneAmount(campaign.Target)) < 0 {
		return ErrNotFullyFunded
	}
	held, err := e.HeldBalance()
	if err != nil {
		return err
	}
	if held.Lt(raised) {
		return ErrInsufficientVaultBalance
	}
	if err := e.transfer(e.state.VaultAddress(), campaign.Beneficiary, raised); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.CampaignDelete(id); err != nil {
		return err
	}
	if err := e.state.ContributionDelete(id); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(campaign, raised))
	return nil
}

// HeldBalance reports the total value currently held by the module vault,
// shared across all campaigns.
func (e *Engine) HeldBalance() (*uint256.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vault, err := e.state.GetAccount(e.state.VaultAddress())
	if err != nil {
		return nil, err
	}
	return cloneAmount(ensureAccount(vault).Balance), nil
}
