package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fundvault/core"
	"fundvault/crypto"
	"fundvault/storage"
)

type testEnv struct {
	server      *httptest.Server
	beneficiary crypto.Address
	contributor crypto.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, nil, "fundvault-test")
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	beneficiaryKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	contributorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	beneficiary := beneficiaryKey.PubKey().Address()
	contributor := contributorKey.PubKey().Address()
	if err := node.ApplyGenesisAlloc(map[string]string{contributor.String(): "1000"}); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	srv := httptest.NewServer(NewServer(node, nil).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, beneficiary: beneficiary, contributor: contributor}
}

func (env *testEnv) call(t *testing.T, method string, params interface{}) (*RPCResponse, int) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(env.server.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var rpcResp RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &rpcResp, resp.StatusCode
}

func decodeResult(t *testing.T, resp *RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestRPCFullCampaignLifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp, status := env.call(t, "fundraiser_register", registerParams{
		Caller: env.beneficiary.String(),
		Target: "100",
	})
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("register failed: status=%d err=%v", status, resp.Error)
	}
	var reg registerResult
	decodeResult(t, resp, &reg)
	if reg.ID != 0 {
		t.Fatalf("first campaign should get id 0, got %d", reg.ID)
	}

	// Funding status is absent before any contribution.
	resp, _ = env.call(t, "fundraiser_getFundingStatus", campaignIDParams{ID: reg.ID})
	if resp.Error != nil || resp.Result != nil {
		t.Fatalf("expected null funding status, got result=%v err=%v", resp.Result, resp.Error)
	}

	resp, status = env.call(t, "fundraiser_contribute", contributeParams{
		ID:     reg.ID,
		Caller: env.contributor.String(),
		Value:  "100",
	})
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("contribute failed: status=%d err=%v", status, resp.Error)
	}

	resp, _ = env.call(t, "fundraiser_getCampaign", campaignIDParams{ID: reg.ID})
	if resp.Error != nil {
		t.Fatalf("get campaign: %v", resp.Error)
	}
	var campaign campaignJSON
	decodeResult(t, resp, &campaign)
	if campaign.Beneficiary != env.beneficiary.String() {
		t.Fatalf("unexpected beneficiary: %s", campaign.Beneficiary)
	}
	if campaign.Target != "100" {
		t.Fatalf("unexpected target: %s", campaign.Target)
	}
	if campaign.Raised == nil || *campaign.Raised != "100" {
		t.Fatalf("unexpected raised: %v", campaign.Raised)
	}

	resp, status = env.call(t, "fundraiser_withdraw", withdrawParams{
		ID:     reg.ID,
		Caller: env.beneficiary.String(),
	})
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("withdraw failed: status=%d err=%v", status, resp.Error)
	}

	resp, _ = env.call(t, "fundraiser_getCampaign", campaignIDParams{ID: reg.ID})
	if resp.Result != nil {
		t.Fatalf("campaign should be absent after withdrawal")
	}

	resp, _ = env.call(t, "fundraiser_getBalance", balanceParams{Address: env.beneficiary.String()})
	var balance balanceResult
	decodeResult(t, resp, &balance)
	if balance.Balance != "100" {
		t.Fatalf("beneficiary should hold 100, got %s", balance.Balance)
	}

	resp, _ = env.call(t, "fundraiser_heldBalance", nil)
	var held heldBalanceResult
	decodeResult(t, resp, &held)
	if held.Balance != "0" {
		t.Fatalf("vault should be empty, got %s", held.Balance)
	}
}

func TestRPCErrorCodes(t *testing.T) {
	env := newTestEnv(t)

	// Unknown campaign.
	resp, status := env.call(t, "fundraiser_contribute", contributeParams{
		ID:     999,
		Caller: env.contributor.String(),
		Value:  "10",
	})
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeFundraiserNotFound {
		t.Fatalf("expected unknown_campaign, got status=%d err=%v", status, resp.Error)
	}

	// Premature withdrawal.
	registerResp, _ := env.call(t, "fundraiser_register", registerParams{
		Caller: env.beneficiary.String(),
		Target: "50",
	})
	var reg registerResult
	decodeResult(t, registerResp, &reg)

	resp, status = env.call(t, "fundraiser_withdraw", withdrawParams{ID: reg.ID, Caller: env.beneficiary.String()})
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeFundraiserConflict {
		t.Fatalf("expected not_fully_funded conflict, got status=%d err=%v", status, resp.Error)
	}

	// Withdrawal by a stranger.
	if _, s := env.call(t, "fundraiser_contribute", contributeParams{ID: reg.ID, Caller: env.contributor.String(), Value: "50"}); s != http.StatusOK {
		t.Fatalf("contribute failed with status %d", s)
	}
	resp, status = env.call(t, "fundraiser_withdraw", withdrawParams{ID: reg.ID, Caller: env.contributor.String()})
	if status != http.StatusForbidden || resp.Error == nil || resp.Error.Code != codeFundraiserForbidden {
		t.Fatalf("expected not_beneficiary, got status=%d err=%v", status, resp.Error)
	}

	// Contribution beyond a fully funded campaign.
	resp, status = env.call(t, "fundraiser_contribute", contributeParams{ID: reg.ID, Caller: env.contributor.String(), Value: "1"})
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeFundraiserConflict {
		t.Fatalf("expected already_fully_funded, got status=%d err=%v", status, resp.Error)
	}

	// Malformed caller address.
	resp, status = env.call(t, "fundraiser_register", registerParams{Caller: "bogus", Target: "10"})
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeFundraiserInvalidParams {
		t.Fatalf("expected invalid_params, got status=%d err=%v", status, resp.Error)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	resp, status := env.call(t, "fundraiser_unknown", nil)
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method_not_found, got status=%d err=%v", status, resp.Error)
	}
}

func TestRPCRejectsNonPost(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestRPCBearerAuthOnMutatingMethods(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, nil, "fundvault-test")
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	caller := key.PubKey().Address()

	t.Setenv(authTokenEnv, "secret-token")
	srv := httptest.NewServer(NewServer(node, nil).Handler())
	t.Cleanup(srv.Close)

	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  "fundraiser_register",
		"params":  []interface{}{registerParams{Caller: caller.String(), Target: "10"}},
	})

	// No token: rejected.
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Correct token: accepted.
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}

	// Read-only methods stay open.
	readPayload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      2,
		"method":  "fundraiser_getCampaign",
		"params":  []interface{}{campaignIDParams{ID: 0}},
	})
	resp, err = http.Post(srv.URL, "application/json", bytes.NewReader(readPayload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("read-only method should not require auth, got %d", resp.StatusCode)
	}
}
