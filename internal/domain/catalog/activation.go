package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// ActivationID is the opaque public identifier of a purchased number:
// "<vendor-slug>:<vendor-activation-id>". The vendor prefix is the sole routing
// key for status, cancel, resend and complete.

// FormatActivationID prefixes a raw vendor activation ID with the vendor slug.
func FormatActivationID(vendorSlug, rawID string) string {
	return vendorSlug + ":" + rawID
}

// ParseActivationID splits a public activation ID into vendor slug and raw ID.
// The empty vendor return with nil error signals a legacy unprefixed ID, which
// the router resolves by probing all active vendors.
func ParseActivationID(id string) (vendorSlug, rawID string, err error) {
	if id == "" {
		return "", "", errors.NewValidationError("INVALID_ACTIVATION_ID", "activation id is empty")
	}
	idx := strings.Index(id, ":")
	if idx < 0 {
		return "", id, nil
	}
	slug, raw := id[:idx], id[idx+1:]
	if raw == "" {
		return "", "", errors.NewValidationError("INVALID_ACTIVATION_ID",
			"activation id has an empty vendor segment")
	}
	if !vendor.ValidSlug(slug) {
		return "", "", errors.NewValidationError("INVALID_ACTIVATION_ID",
			"activation id vendor prefix must match ^[a-z0-9_-]+$")
	}
	return slug, raw, nil
}

// PurchaseResult is the router-level result of a successful purchase.
type PurchaseResult struct {
	ActivationID string          `json:"activation_id"`
	PhoneNumber  string          `json:"phone_number"`
	SellPrice    decimal.Decimal `json:"sell_price"`
	Vendor       string          `json:"vendor"`
}
