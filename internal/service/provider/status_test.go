package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/catalog"
)

func TestNormalizeState(t *testing.T) {
	tests := []struct {
		raw  string
		want catalog.ActivationState
	}{
		{"STATUS_WAIT_CODE", catalog.ActivationWaiting},
		{"pending", catalog.ActivationWaiting},
		{"STATUS_OK", catalog.ActivationReceived},
		{"got_code", catalog.ActivationReceived},
		{"STATUS_CANCEL", catalog.ActivationCancelled},
		{"Canceled", catalog.ActivationCancelled},
		{"STATUS_FINISH", catalog.ActivationCompleted},
		{"done", catalog.ActivationCompleted},
		{"EXPIRED", catalog.ActivationExpired},
		{"received", catalog.ActivationReceived}, // canonical value passes through
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeState(tt.raw, nil), tt.raw)
	}
}

func TestNormalizeStateUnknownDegradesToWaiting(t *testing.T) {
	assert.Equal(t, catalog.ActivationWaiting, normalizeState("SOMETHING_NEW", nil))
	assert.Equal(t, catalog.ActivationWaiting, normalizeState("", nil))
}

func TestNormalizeStateOverrides(t *testing.T) {
	overrides := map[string]string{
		"3": "received",
		"8": "cancelled",
	}
	assert.Equal(t, catalog.ActivationReceived, normalizeState("3", overrides))
	assert.Equal(t, catalog.ActivationCancelled, normalizeState("8", overrides))
	// Unmapped values still go through the builtin vocabulary.
	assert.Equal(t, catalog.ActivationExpired, normalizeState("EXPIRED", overrides))
}
