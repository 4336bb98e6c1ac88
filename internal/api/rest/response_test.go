package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

func TestProviderErrorStatus(t *testing.T) {
	tests := []struct {
		kind vendor.ErrorKind
		want int
	}{
		{vendor.KindBadRequest, http.StatusBadRequest},
		{vendor.KindBadCredentials, http.StatusBadGateway},
		{vendor.KindNoStock, http.StatusConflict},
		{vendor.KindNoBalance, http.StatusConflict},
		{vendor.KindRateLimited, http.StatusTooManyRequests},
		{vendor.KindTimeout, http.StatusGatewayTimeout},
		{vendor.KindLifecycleTerminal, http.StatusGone},
		{vendor.KindServerError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, providerErrorStatus(tt.kind))
		})
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteErrorAppError(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil)

	h.writeError(rec, req, errors.NewValidationError("MISSING_FIELDS", "country is required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "MISSING_FIELDS", resp.Error.Code)
	assert.Equal(t, "country is required", resp.Error.Message)
}

func TestWriteErrorProviderError(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", nil)

	h.writeError(rec, req, vendor.NewProviderError("smshub", "buy",
		vendor.KindNoStock, "no numbers left"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "NO_STOCK", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no numbers left")
}

func TestWriteErrorUnclassifiedNeverLeaks(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors/balance", nil)

	h.writeError(rec, req, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, assert.AnError.Error())
}
