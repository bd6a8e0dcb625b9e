package core

import (
	"testing"

	"github.com/holiman/uint256"

	"fundvault/crypto"
	"fundvault/storage"
)

func newTestNode(t *testing.T, db storage.Database) *Node {
	t.Helper()
	node, err := NewNode(db, nil, "fundvault-test")
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func newTestAccount(t *testing.T) (crypto.Address, [20]byte) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	return addr, addr.Raw()
}

func TestNodeGenesisAllocAppliedOnce(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node := newTestNode(t, db)

	addr, raw := newTestAccount(t)
	alloc := map[string]string{addr.String(): "1000"}

	if err := node.ApplyGenesisAlloc(alloc); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	balance, err := node.GetBalance(raw)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("expected balance 1000, got %s", balance.Dec())
	}

	// A second application, including one from a restarted node over the same
	// database, must be a no-op.
	if err := node.ApplyGenesisAlloc(alloc); err != nil {
		t.Fatalf("reapply genesis: %v", err)
	}
	restarted := newTestNode(t, db)
	if err := restarted.ApplyGenesisAlloc(alloc); err != nil {
		t.Fatalf("reapply genesis after restart: %v", err)
	}
	balance, err = restarted.GetBalance(raw)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Cmp(uint256.NewInt(1000)) != 0 {
		t.Fatalf("genesis must apply once, got %s", balance.Dec())
	}
}

func TestNodeGenesisAllocRejectsBadInput(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node := newTestNode(t, db)

	if err := node.ApplyGenesisAlloc(map[string]string{"not-an-address": "10"}); err == nil {
		t.Fatalf("invalid address must be rejected")
	}
	addr, _ := newTestAccount(t)
	if err := node.ApplyGenesisAlloc(map[string]string{addr.String(): "ten"}); err == nil {
		t.Fatalf("invalid amount must be rejected")
	}
}

func TestNodeCampaignLifecyclePersists(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node := newTestNode(t, db)

	_, beneficiary := newTestAccount(t)
	contributorAddr, contributor := newTestAccount(t)
	if err := node.ApplyGenesisAlloc(map[string]string{contributorAddr.String(): "500"}); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	id, err := node.Register(beneficiary, uint256.NewInt(100))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := node.Contribute(id, contributor, uint256.NewInt(100)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	// Campaign, ledger entry and allocator all survive a node restart.
	restarted := newTestNode(t, db)
	raised, ok := restarted.FundingStatus(id)
	if !ok || raised.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("funding status lost across restart (ok=%v raised=%v)", ok, raised)
	}
	nextID, err := restarted.Register(beneficiary, uint256.NewInt(1))
	if err != nil {
		t.Fatalf("register after restart: %v", err)
	}
	if nextID != id+1 {
		t.Fatalf("allocator lost across restart: got %d after %d", nextID, id)
	}

	if err := restarted.Withdraw(id, beneficiary); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	balance, err := restarted.GetBalance(beneficiary)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("beneficiary should hold 100, got %s", balance.Dec())
	}
	if _, ok := restarted.GetCampaign(id); ok {
		t.Fatalf("campaign must be retired after withdrawal")
	}
	held, err := restarted.HeldBalance()
	if err != nil {
		t.Fatalf("held balance: %v", err)
	}
	if !held.IsZero() {
		t.Fatalf("vault should be empty, got %s", held.Dec())
	}
}
