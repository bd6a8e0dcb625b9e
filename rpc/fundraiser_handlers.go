package rpc

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/holiman/uint256"

	"fundvault/crypto"
	"fundvault/native/fundraiser"
)

const (
	codeFundraiserInvalidParams = -32021
	codeFundraiserNotFound      = -32022
	codeFundraiserForbidden     = -32023
	codeFundraiserConflict      = -32024
	codeFundraiserInternal      = -32025
	codeFundraiserInsufficient  = -32026
	codeFundraiserOverflow      = -32027
)

type registerParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
}

type campaignIDParams struct {
	ID uint64 `json:"id"`
}

type contributeParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

type withdrawParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type registerResult struct {
	ID uint64 `json:"id"`
}

type campaignJSON struct {
	ID          uint64  `json:"id"`
	Beneficiary string  `json:"beneficiary"`
	Target      string  `json:"target"`
	CreatedAt   int64   `json:"createdAt"`
	Raised      *string `json:"raised,omitempty"`
}

type fundingStatusResult struct {
	Raised string `json:"raised"`
}

type heldBalanceResult struct {
	Balance string `json:"balance"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("exactly one parameter object expected")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func invalidParams(detail string) *RPCError {
	return &RPCError{Code: codeFundraiserInvalidParams, Message: "invalid_params", Data: detail}
}

func parseCaller(value string) ([20]byte, *RPCError) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, invalidParams(err.Error())
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (*uint256.Int, *RPCError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams("amount must not be empty")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, invalidParams(err.Error())
	}
	return amount, nil
}

// engineError maps the engine's sentinel errors to distinct JSON-RPC codes so
// callers can tell which precondition failed.
func engineError(err error) *RPCError {
	switch {
	case errors.Is(err, fundraiser.ErrUnknownCampaign):
		return &RPCError{Code: codeFundraiserNotFound, Message: "unknown_campaign", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrNotBeneficiary):
		return &RPCError{Code: codeFundraiserForbidden, Message: "not_beneficiary", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrAlreadyFullyFunded):
		return &RPCError{Code: codeFundraiserConflict, Message: "already_fully_funded", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrNotFullyFunded):
		return &RPCError{Code: codeFundraiserConflict, Message: "not_fully_funded", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrInsufficientFunds):
		return &RPCError{Code: codeFundraiserInsufficient, Message: "insufficient_balance", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrAmountOverflow):
		return &RPCError{Code: codeFundraiserOverflow, Message: "amount_overflow", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrAllocatorExhausted):
		return &RPCError{Code: codeFundraiserInternal, Message: "allocator_exhausted", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrInsufficientVaultBalance):
		return &RPCError{Code: codeFundraiserInternal, Message: "held_balance_divergence", Data: err.Error()}
	case errors.Is(err, fundraiser.ErrTransferFailed):
		return &RPCError{Code: codeFundraiserInternal, Message: "transfer_failed", Data: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: "server_error", Data: err.Error()}
	}
}

func (s *Server) handleRegister(req *RPCRequest) (interface{}, *RPCError) {
	var params registerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := parseAmount(params.Target)
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, err := s.node.Register(caller, target)
	if err != nil {
		return nil, engineError(err)
	}
	return registerResult{ID: uint64(id)}, nil
}

func (s *Server) handleGetCampaign(req *RPCRequest) (interface{}, *RPCError) {
	var params campaignIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	campaign, ok := s.node.GetCampaign(fundraiser.CampaignID(params.ID))
	if !ok {
		return nil, nil
	}
	out := campaignJSON{
		ID:          uint64(campaign.ID),
		Beneficiary: crypto.NewAddress(campaign.Beneficiary[:]).String(),
		Target:      campaign.Target.Dec(),
		CreatedAt:   campaign.CreatedAt,
	}
	if raised, ok := s.node.FundingStatus(campaign.ID); ok {
		dec := raised.Dec()
		out.Raised = &dec
	}
	return out, nil
}

func (s *Server) handleContribute(req *RPCRequest) (interface{}, *RPCError) {
	var params contributeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	value, rpcErr := parseAmount(params.Value)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Contribute(fundraiser.CampaignID(params.ID), caller, value); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetFundingStatus(req *RPCRequest) (interface{}, *RPCError) {
	var params campaignIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	raised, ok := s.node.FundingStatus(fundraiser.CampaignID(params.ID))
	if !ok {
		return nil, nil
	}
	return fundingStatusResult{Raised: raised.Dec()}, nil
}

func (s *Server) handleWithdraw(req *RPCRequest) (interface{}, *RPCError) {
	var params withdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.Withdraw(fundraiser.CampaignID(params.ID), caller); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleHeldBalance(req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) > 0 {
		return nil, invalidParams("no parameters expected")
	}
	held, err := s.node.HeldBalance()
	if err != nil {
		return nil, engineError(err)
	}
	return heldBalanceResult{Balance: held.Dec()}, nil
}

func (s *Server) handleGetBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params balanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseCaller(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.GetBalance(addr)
	if err != nil {
		return nil, engineError(err)
	}
	return balanceResult{Address: strings.TrimSpace(params.Address), Balance: balance.Dec()}, nil
}
