package fundraiser

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestCampaignCloneIsDeep(t *testing.T) {
	original := &Campaign{
		ID:          7,
		Beneficiary: newTestAddress(0x11),
		Target:      uint256.NewInt(100),
		CreatedAt:   1_700_000_000,
	}
	clone := original.Clone()
	if clone == original {
		t.Fatalf("clone must be a new instance")
	}
	if clone.Target == original.Target {
		t.Fatalf("clone must not share the target pointer")
	}
	clone.Target.SetUint64(5)
	if original.Target.Cmp(uint256.NewInt(100)) != 0 {
		t.Fatalf("mutating the clone leaked into the original")
	}
}

func TestSanitizeCampaign(t *testing.T) {
	if _, err := SanitizeCampaign(nil); err == nil {
		t.Fatalf("nil campaign must be rejected")
	}
	sanitized, err := SanitizeCampaign(&Campaign{ID: 1, Beneficiary: newTestAddress(0x22)})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Target == nil || !sanitized.Target.IsZero() {
		t.Fatalf("nil target must normalise to zero")
	}
}
