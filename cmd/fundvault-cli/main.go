package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"fundvault/crypto"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("FUNDVAULT_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		generateKey()
	case "register":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a target amount and a key file.")
			printUsage()
			return
		}
		register(args[1], args[2])
	case "campaign":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a campaign id.")
			printUsage()
			return
		}
		getCampaign(args[1])
	case "contribute":
		if len(args) < 4 {
			fmt.Println("Error: Please provide a campaign id, an amount and a key file.")
			printUsage()
			return
		}
		contribute(args[1], args[2], args[3])
	case "status":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a campaign id.")
			printUsage()
			return
		}
		getFundingStatus(args[1])
	case "withdraw":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a campaign id and a key file.")
			printUsage()
			return
		}
		withdraw(args[1], args[2])
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		getBalance(args[1])
	case "held-balance":
		getHeldBalance()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: fundvault-cli [--rpc <url>] <command> [args]

Commands:
  generate-key                          Create a new keypair and save it to wallet.key
  register <target> <keyfile>           Register a campaign with the given funding target
  campaign <id>                         Show a campaign's terms and raised amount
  contribute <id> <amount> <keyfile>    Contribute value toward a campaign
  status <id>                           Show the accumulated contribution amount
  withdraw <id> <keyfile>               Withdraw a fully funded campaign (beneficiary only)
  balance <address>                     Show an account's balance
  held-balance                          Show the total value held by the ledger vault`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8645"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}

	fileName := "wallet.key"
	if err := os.WriteFile(fileName, key.Bytes(), 0600); err != nil {
		panic(fmt.Sprintf("Failed to save key to %s: %v", fileName, err))
	}

	fmt.Printf("Generated new key and saved to %s\n", fileName)
	fmt.Printf("Your public address is: %s\n", key.PubKey().Address().String())
	fmt.Println("Store this file securely. Commands will refuse to run without it.")
}

func loadAddress(keyFile string) (string, error) {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return "", err
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return "", err
	}
	return key.PubKey().Address().String(), nil
}

func parseCampaignID(value string) (uint64, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		fmt.Println("Error: Invalid campaign id.")
		return 0, false
	}
	return id, true
}

func register(target, keyFile string) {
	caller, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	result, err := sendRPCRequest("fundraiser_register", map[string]interface{}{
		"caller": caller,
		"target": target,
	})
	if err != nil {
		fmt.Printf("Error registering campaign: %v\n", err)
		return
	}
	var out struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Registered campaign %d with target %s (beneficiary %s)\n", out.ID, target, caller)
}

func getCampaign(idArg string) {
	id, ok := parseCampaignID(idArg)
	if !ok {
		return
	}
	result, err := sendRPCRequest("fundraiser_getCampaign", map[string]interface{}{"id": id})
	if err != nil {
		fmt.Printf("Error fetching campaign: %v\n", err)
		return
	}
	if string(result) == "null" || len(result) == 0 {
		fmt.Printf("Campaign %d does not exist (or has been withdrawn).\n", id)
		return
	}
	var out struct {
		ID          uint64  `json:"id"`
		Beneficiary string  `json:"beneficiary"`
		Target      string  `json:"target"`
		CreatedAt   int64   `json:"createdAt"`
		Raised      *string `json:"raised"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Campaign %d\n", out.ID)
	fmt.Printf("  Beneficiary: %s\n", out.Beneficiary)
	fmt.Printf("  Target:      %s\n", out.Target)
	if out.Raised != nil {
		fmt.Printf("  Raised:      %s\n", *out.Raised)
	} else {
		fmt.Printf("  Raised:      0 (no contributions yet)\n")
	}
	fmt.Printf("  Created:     %s\n", time.Unix(out.CreatedAt, 0).UTC().Format(time.RFC3339))
}

func contribute(idArg, amount, keyFile string) {
	id, ok := parseCampaignID(idArg)
	if !ok {
		return
	}
	caller, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	if _, err := sendRPCRequest("fundraiser_contribute", map[string]interface{}{
		"id":     id,
		"caller": caller,
		"value":  amount,
	}); err != nil {
		fmt.Printf("Error contributing: %v\n", err)
		return
	}
	fmt.Printf("Contributed %s to campaign %d from %s\n", amount, id, caller)
}

func getFundingStatus(idArg string) {
	id, ok := parseCampaignID(idArg)
	if !ok {
		return
	}
	result, err := sendRPCRequest("fundraiser_getFundingStatus", map[string]interface{}{"id": id})
	if err != nil {
		fmt.Printf("Error fetching funding status: %v\n", err)
		return
	}
	if string(result) == "null" || len(result) == 0 {
		fmt.Printf("Campaign %d has no recorded contributions.\n", id)
		return
	}
	var out struct {
		Raised string `json:"raised"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Campaign %d has raised %s\n", id, out.Raised)
}

func withdraw(idArg, keyFile string) {
	id, ok := parseCampaignID(idArg)
	if !ok {
		return
	}
	caller, err := loadAddress(keyFile)
	if err != nil {
		fmt.Printf("Error loading private key: %v\n", err)
		return
	}
	if _, err := sendRPCRequest("fundraiser_withdraw", map[string]interface{}{
		"id":     id,
		"caller": caller,
	}); err != nil {
		fmt.Printf("Error withdrawing: %v\n", err)
		return
	}
	fmt.Printf("Withdrew campaign %d to %s\n", id, caller)
}

func getBalance(addr string) {
	result, err := sendRPCRequest("fundraiser_getBalance", map[string]interface{}{"address": addr})
	if err != nil {
		fmt.Printf("Error fetching balance: %v\n", err)
		return
	}
	var out struct {
		Address string `json:"address"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Balance of %s: %s\n", out.Address, out.Balance)
}

func getHeldBalance() {
	result, err := sendRPCRequest("fundraiser_heldBalance", nil)
	if err != nil {
		fmt.Printf("Error fetching held balance: %v\n", err)
		return
	}
	var out struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	fmt.Printf("Total held balance: %s\n", out.Balance)
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func sendRPCRequest(method string, params interface{}) (json.RawMessage, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcAuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		if decoded.Error.Data != nil {
			return nil, fmt.Errorf("%s (%v)", decoded.Error.Message, decoded.Error.Data)
		}
		return nil, fmt.Errorf("%s", decoded.Error.Message)
	}
	return decoded.Result, nil
}
