package fundraiser

import (
	"fmt"

	"github.com/holiman/uint256"
)

// CampaignID is the sequential handle issued by the registry. Identifiers are
// never reused: a withdrawn campaign's id stays retired forever.
type CampaignID uint64

// Campaign captures the immutable terms of a single funding target. The
// beneficiary is the account that registered the campaign and the only account
// allowed to withdraw once the target is met.
type Campaign struct {
	ID          CampaignID
	Beneficiary [20]byte
	Target      *uint256.Int
	CreatedAt   int64
}

// Clone returns a deep copy of the campaign so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Target != nil {
		clone.Target = new(uint256.Int).Set(c.Target)
	} else {
		clone.Target = uint256.NewInt(0)
	}
	return &clone
}

// SanitizeCampaign validates the supplied campaign definition and returns a
// cloned instance with a non-nil target. The function does not mutate the
// original value.
func SanitizeCampaign(c *Campaign) (*Campaign, error) {
	if c == nil {
		return nil, fmt.Errorf("nil campaign")
	}
	clone := c.Clone()
	if clone.Target == nil {
		clone.Target = uint256.NewInt(0)
	}
	return clone, nil
}
