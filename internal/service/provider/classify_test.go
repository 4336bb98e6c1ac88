package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

func TestClassifyResponseMappingRules(t *testing.T) {
	spec := vendor.OperationSpec{
		ErrorRules: []vendor.ErrorRule{
			{Match: `"error":\s*"out_of_numbers"`, Kind: vendor.KindNoStock},
			{Status: 402, Kind: vendor.KindNoBalance},
			{Kind: vendor.KindServerError}, // neither status nor match: never fires
		},
	}

	t.Run("body rule matches inside http 200", func(t *testing.T) {
		perr := classifyResponse("smshub", "buy", spec, 200, []byte(`{"error": "out_of_numbers"}`))
		require.NotNil(t, perr)
		assert.Equal(t, vendor.KindNoStock, perr.Kind)
	})

	t.Run("status rule", func(t *testing.T) {
		perr := classifyResponse("smshub", "buy", spec, 402, []byte(`payment required`))
		require.NotNil(t, perr)
		assert.Equal(t, vendor.KindNoBalance, perr.Kind)
	})

	t.Run("empty rule is skipped", func(t *testing.T) {
		assert.Nil(t, classifyResponse("smshub", "buy", spec, 200, []byte(`{"id": 1}`)))
	})

	t.Run("mapping rule outranks builtin marker", func(t *testing.T) {
		withOverride := vendor.OperationSpec{
			ErrorRules: []vendor.ErrorRule{
				{Match: `NO_NUMBERS`, Kind: vendor.KindRateLimited},
			},
		}
		perr := classifyResponse("smshub", "buy", withOverride, 200, []byte(`NO_NUMBERS`))
		require.NotNil(t, perr)
		assert.Equal(t, vendor.KindRateLimited, perr.Kind)
	})
}

func TestClassifyResponseBuiltinMarkers(t *testing.T) {
	spec := vendor.OperationSpec{}
	tests := []struct {
		body string
		kind vendor.ErrorKind
	}{
		{"NO_NUMBERS", vendor.KindNoStock},
		{"no_balance", vendor.KindNoBalance},
		{"NOT_ENOUGH_FUNDS", vendor.KindNoBalance},
		{"BAD_KEY", vendor.KindBadCredentials},
		{"account BANNED", vendor.KindBadCredentials},
	}
	for _, tt := range tests {
		perr := classifyResponse("smshub", "buy", spec, 200, []byte(tt.body))
		require.NotNil(t, perr, tt.body)
		assert.Equal(t, tt.kind, perr.Kind, tt.body)
	}
}

func TestClassifyResponseStatusDefaults(t *testing.T) {
	spec := vendor.OperationSpec{}
	tests := []struct {
		status int
		kind   vendor.ErrorKind
	}{
		{401, vendor.KindBadCredentials},
		{403, vendor.KindBadCredentials},
		{429, vendor.KindRateLimited},
		{408, vendor.KindTimeout},
		{504, vendor.KindTimeout},
		{500, vendor.KindServerError},
		{400, vendor.KindBadRequest},
		{302, vendor.KindUnknown},
	}
	for _, tt := range tests {
		perr := classifyResponse("smshub", "buy", spec, tt.status, []byte(`nope`))
		require.NotNil(t, perr)
		assert.Equal(t, tt.kind, perr.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, perr.Status)
	}

	assert.Nil(t, classifyResponse("smshub", "buy", spec, 200, []byte(`{"ok": true}`)))
	assert.Nil(t, classifyResponse("smshub", "buy", spec, 204, nil))
}

func TestClassifyTransport(t *testing.T) {
	perr := classifyTransport("smshub", "buy", context.DeadlineExceeded)
	assert.Equal(t, vendor.KindTimeout, perr.Kind)

	perr = classifyTransport("smshub", "buy", errors.New("connection refused"))
	assert.Equal(t, vendor.KindServerError, perr.Kind)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "empty response body", snippet("   "))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, snippet(string(long)), 203)
}
