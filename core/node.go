package core

import (
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"fundvault/core/events"
	"fundvault/core/state"
	"fundvault/core/types"
	"fundvault/crypto"
	"fundvault/native/fundraiser"
	"fundvault/storage"
)

// Node wires the persistent store, the state manager and the fundraiser engine
// into the single-writer ledger the RPC layer talks to. The hosting runtime
// serializes calls, so the node holds no locks of its own.
type Node struct {
	db      storage.Database
	state   *state.Manager
	engine  *fundraiser.Engine
	logger  *slog.Logger
	network string
}

// NewNode constructs a node over the provided database. A nil logger falls
// back to slog's default.
func NewNode(db storage.Database, logger *slog.Logger, network string) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node requires a database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	engine := fundraiser.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(&logEmitter{logger: logger})
	return &Node{
		db:      db,
		state:   manager,
		engine:  engine,
		logger:  logger,
		network: network,
	}, nil
}

// ApplyGenesisAlloc credits the configured balances exactly once per database.
// Keys are bech32 addresses, values decimal amounts.
func (n *Node) ApplyGenesisAlloc(alloc map[string]string) error {
	if len(alloc) == 0 {
		return nil
	}
	applied, err := n.state.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for addrStr, amountStr := range alloc {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return fmt.Errorf("genesis alloc %q: %w", addrStr, err)
		}
		amount, err := uint256.FromDecimal(amountStr)
		if err != nil {
			return fmt.Errorf("genesis alloc %q: %w", addrStr, err)
		}
		account, err := n.state.GetAccount(addr.Raw())
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(account.Balance, amount)
		if overflow {
			return fmt.Errorf("genesis alloc %q: balance overflow", addrStr)
		}
		account.Balance = credited
		if err := n.state.PutAccount(addr.Raw(), account); err != nil {
			return err
		}
		n.logger.Info("applied genesis allocation",
			slog.String("address", addrStr),
			slog.String("amount", amount.Dec()))
	}
	return n.state.SetGenesisApplied()
}

// Network returns the configured network name.
func (n *Node) Network() string { return n.network }

// Register creates a campaign with the caller as beneficiary.
func (n *Node) Register(caller [20]byte, target *uint256.Int) (fundraiser.CampaignID, error) {
	return n.engine.Register(caller, target)
}

// GetCampaign returns the campaign terms, or false when absent.
func (n *Node) GetCampaign(id fundraiser.CampaignID) (*fundraiser.Campaign, bool) {
	return n.engine.GetCampaign(id)
}

// Contribute accumulates the attached value against a campaign.
func (n *Node) Contribute(id fundraiser.CampaignID, caller [20]byte, value *uint256.Int) error {
	return n.engine.Contribute(id, caller, value)
}

// FundingStatus returns the accumulated amount for a campaign, or false when
// no contribution has been recorded.
func (n *Node) FundingStatus(id fundraiser.CampaignID) (*uint256.Int, bool) {
	return n.engine.FundingStatus(id)
}

// Withdraw pays out a fully funded campaign to its beneficiary.
func (n *Node) Withdraw(id fundraiser.CampaignID, caller [20]byte) error {
	return n.engine.Withdraw(id, caller)
}

// HeldBalance reports the total value held by the module vault.
func (n *Node) HeldBalance() (*uint256.Int, error) {
	return n.engine.HeldBalance()
}

// GetBalance returns the spendable balance of an account.
func (n *Node) GetBalance(addr [20]byte) (*uint256.Int, error) {
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account.Balance == nil {
		return uint256.NewInt(0), nil
	}
	return new(uint256.Int).Set(account.Balance), nil
}

type payloadEvent interface {
	Event() *types.Event
}

// logEmitter forwards engine events to the structured logger.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if payload, ok := evt.(payloadEvent); ok {
		if e := payload.Event(); e != nil {
			for k, v := range e.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
		}
	}
	l.logger.Info("ledger event", attrs...)
}
