package state

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"fundvault/core/types"
	"fundvault/native/fundraiser"
	"fundvault/storage"
)

const (
	campaignPrefix     = "fundraiser/campaign/"
	contributionPrefix = "fundraiser/raised/"
	nextIDKey          = "fundraiser/nextid"
	accountPrefix      = "accounts/"
	genesisAppliedKey  = "genesis/applied"
)

// vaultSeed feeds the keccak derivation of the module vault address. Changing
// it would strand any value already held by a deployed ledger.
const vaultSeed = "fundvault/module/vault"

// Manager persists the funding ledger's three state regions - campaign terms,
// contribution amounts and the allocator counter - plus account balances, as
// RLP records over a key-value database. It implements the engine's state
// interface.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager backed by the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

type storedCampaign struct {
	ID          uint64
	Beneficiary [20]byte
	Target      *uint256.Int
	CreatedAt   uint64
}

type storedAccount struct {
	Nonce   uint64
	Balance *uint256.Int
}

func campaignKey(id fundraiser.CampaignID) []byte {
	return appendUint64([]byte(campaignPrefix), uint64(id))
}

func contributionKey(id fundraiser.CampaignID) []byte {
	return appendUint64([]byte(contributionPrefix), uint64(id))
}

func accountKey(addr [20]byte) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func appendUint64(prefix []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(prefix, buf[:]...)
}

func (m *Manager) ensureDB() error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state manager uninitialised")
	}
	return nil
}

// CampaignPut stores the campaign terms under its id.
func (m *Manager) CampaignPut(c *fundraiser.Campaign) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	sanitized, err := fundraiser.SanitizeCampaign(c)
	if err != nil {
		return err
	}
	if sanitized.CreatedAt < 0 {
		return fmt.Errorf("campaign createdAt must not be negative")
	}
	record := storedCampaign{
		ID:          uint64(sanitized.ID),
		Beneficiary: sanitized.Beneficiary,
		Target:      sanitized.Target,
		CreatedAt:   uint64(sanitized.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.db.Put(campaignKey(sanitized.ID), encoded)
}

// CampaignGet loads the campaign terms for an id. The boolean is false when
// the id was never issued or the campaign has been retired.
func (m *Manager) CampaignGet(id fundraiser.CampaignID) (*fundraiser.Campaign, bool) {
	if m == nil || m.db == nil {
		return nil, false
	}
	ok, err := m.db.Has(campaignKey(id))
	if err != nil || !ok {
		return nil, false
	}
	encoded, err := m.db.Get(campaignKey(id))
	if err != nil {
		return nil, false
	}
	var record storedCampaign
	if err := rlp.DecodeBytes(encoded, &record); err != nil {
		return nil, false
	}
	campaign := &fundraiser.Campaign{
		ID:          fundraiser.CampaignID(record.ID),
		Beneficiary: record.Beneficiary,
		Target:      record.Target,
		CreatedAt:   int64(record.CreatedAt),
	}
	return campaign.Clone(), true
}

// CampaignDelete removes the campaign terms for a retired id.
func (m *Manager) CampaignDelete(id fundraiser.CampaignID) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	return m.db.Delete(campaignKey(id))
}

// ContributionPut stores the accumulated contribution amount for a campaign.
func (m *Manager) ContributionPut(id fundraiser.CampaignID, amount *uint256.Int) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(contributionKey(id), encoded)
}

// ContributionGet loads the accumulated contribution amount for a campaign.
// Absence means no contribution has been recorded yet.
func (m *Manager) ContributionGet(id fundraiser.CampaignID) (*uint256.Int, bool) {
	if m == nil || m.db == nil {
		return nil, false
	}
	ok, err := m.db.Has(contributionKey(id))
	if err != nil || !ok {
		return nil, false
	}
	encoded, err := m.db.Get(contributionKey(id))
	if err != nil {
		return nil, false
	}
	amount := new(uint256.Int)
	if err := rlp.DecodeBytes(encoded, amount); err != nil {
		return nil, false
	}
	return amount, true
}

// ContributionDelete clears the ledger entry for a retired campaign.
func (m *Manager) ContributionDelete(id fundraiser.CampaignID) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	return m.db.Delete(contributionKey(id))
}

// CampaignNextID returns the allocator counter; a fresh database starts at
// zero.
func (m *Manager) CampaignNextID() (uint64, error) {
	if err := m.ensureDB(); err != nil {
		return 0, err
	}
	ok, err := m.db.Has([]byte(nextIDKey))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	encoded, err := m.db.Get([]byte(nextIDKey))
	if err != nil {
		return 0, err
	}
	var next uint64
	if err := rlp.DecodeBytes(encoded, &next); err != nil {
		return 0, err
	}
	return next, nil
}

// CampaignSetNextID persists the allocator counter.
func (m *Manager) CampaignSetNextID(next uint64) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return err
	}
	return m.db.Put([]byte(nextIDKey), encoded)
}

// GetAccount loads an account record. Absent accounts resolve to a zero
// balance rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	if err := m.ensureDB(); err != nil {
		return nil, err
	}
	ok, err := m.db.Has(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: uint256.NewInt(0)}, nil
	}
	encoded, err := m.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	var record storedAccount
	if err := rlp.DecodeBytes(encoded, &record); err != nil {
		return nil, err
	}
	balance := record.Balance
	if balance == nil {
		balance = uint256.NewInt(0)
	}
	return &types.Account{Nonce: record.Nonce, Balance: balance}, nil
}

// PutAccount stores an account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	cloned := account.Clone()
	record := storedAccount{Nonce: cloned.Nonce, Balance: cloned.Balance}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), encoded)
}

// VaultAddress returns the module vault address holding all escrowed value.
func (m *Manager) VaultAddress() [20]byte {
	var addr [20]byte
	hash := ethcrypto.Keccak256([]byte(vaultSeed))
	copy(addr[:], hash[12:])
	return addr
}

// GenesisApplied reports whether the one-time genesis allocation has run.
func (m *Manager) GenesisApplied() (bool, error) {
	if err := m.ensureDB(); err != nil {
		return false, err
	}
	return m.db.Has([]byte(genesisAppliedKey))
}

// SetGenesisApplied marks the genesis allocation as done.
func (m *Manager) SetGenesisApplied() error {
	if err := m.ensureDB(); err != nil {
		return err
	}
	return m.db.Put([]byte(genesisAppliedKey), []byte{1})
}
