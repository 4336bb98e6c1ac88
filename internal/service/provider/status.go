package provider

import (
	"strings"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
)

// activationStates maps the status vocabularies seen across activation vendors
// onto the canonical lifecycle. Matching is against the uppercased raw value.
var activationStates = map[string]catalog.ActivationState{
	"STATUS_WAIT_CODE":   catalog.ActivationWaiting,
	"STATUS_WAIT_RESEND": catalog.ActivationWaiting,
	"STATUS_WAIT_RETRY":  catalog.ActivationWaiting,
	"WAITING":            catalog.ActivationWaiting,
	"PENDING":            catalog.ActivationWaiting,
	"WAIT_CODE":          catalog.ActivationWaiting,

	"STATUS_OK":  catalog.ActivationReceived,
	"RECEIVED":   catalog.ActivationReceived,
	"SMS":        catalog.ActivationReceived,
	"OK":         catalog.ActivationReceived,
	"SUCCESS":    catalog.ActivationReceived,
	"FULL_SMS":   catalog.ActivationReceived,
	"GOT_CODE":   catalog.ActivationReceived,

	"STATUS_CANCEL": catalog.ActivationCancelled,
	"CANCELLED":     catalog.ActivationCancelled,
	"CANCELED":      catalog.ActivationCancelled,
	"CANCEL":        catalog.ActivationCancelled,
	"REFUNDED":      catalog.ActivationCancelled,

	"STATUS_FINISH": catalog.ActivationCompleted,
	"COMPLETED":     catalog.ActivationCompleted,
	"FINISHED":      catalog.ActivationCompleted,
	"FINISH":        catalog.ActivationCompleted,
	"DONE":          catalog.ActivationCompleted,

	"STATUS_EXPIRED": catalog.ActivationExpired,
	"EXPIRED":        catalog.ActivationExpired,
	"TIMEOUT":        catalog.ActivationExpired,
}

// normalizeState resolves a raw vendor status value, consulting the mapping's
// optional per-operation status overrides first. Unknown values degrade to
// waiting so a polling client keeps polling instead of terminating a live
// activation on a vocabulary mismatch.
func normalizeState(raw string, overrides map[string]string) catalog.ActivationState {
	probe := strings.ToUpper(strings.TrimSpace(raw))
	if overrides != nil {
		if mapped, ok := overrides[probe]; ok {
			probe = strings.ToUpper(mapped)
		} else if mapped, ok := overrides[raw]; ok {
			probe = strings.ToUpper(mapped)
		}
	}
	if state, ok := activationStates[probe]; ok {
		return state
	}
	switch catalog.ActivationState(strings.ToLower(probe)) {
	case catalog.ActivationWaiting, catalog.ActivationReceived, catalog.ActivationCancelled,
		catalog.ActivationCompleted, catalog.ActivationExpired:
		return catalog.ActivationState(strings.ToLower(probe))
	}
	return catalog.ActivationWaiting
}
