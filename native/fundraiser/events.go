package fundraiser

import (
	"encoding/hex"
	"strconv"

	"github.com/holiman/uint256"

	"fundvault/core/types"
)

const (
	EventTypeRegistered  = "fundraiser.registered"
	EventTypeContributed = "fundraiser.contributed"
	EventTypeWithdrawn   = "fundraiser.withdrawn"
)

// NewRegisteredEvent returns the canonical event payload for a newly registered
// campaign.
func NewRegisteredEvent(c *Campaign) *types.Event {
	attrs := campaignAttributes(c)
	return &types.Event{Type: EventTypeRegistered, Attributes: attrs}
}

// NewContributedEvent returns the canonical event payload emitted when a
// contribution is recorded against a campaign.
func NewContributedEvent(c *Campaign, from [20]byte, amount, raised *uint256.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["from"] = hex.EncodeToString(from[:])
	attrs["amount"] = amountString(amount)
	attrs["raised"] = amountString(raised)
	return &types.Event{Type: EventTypeContributed, Attributes: attrs}
}

// NewWithdrawnEvent returns the canonical event payload emitted when a fully
// funded campaign is paid out and retired.
func NewWithdrawnEvent(c *Campaign, amount *uint256.Int) *types.Event {
	attrs := campaignAttributes(c)
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
}

func campaignAttributes(c *Campaign) map[string]string {
	attrs := make(map[string]string)
	if c == nil {
		return attrs
	}
	sanitized, err := SanitizeCampaign(c)
	if err != nil {
		return attrs
	}
	attrs["id"] = strconv.FormatUint(uint64(sanitized.ID), 10)
	attrs["beneficiary"] = hex.EncodeToString(sanitized.Beneficiary[:])
	attrs["target"] = sanitized.Target.Dec()
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return attrs
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
