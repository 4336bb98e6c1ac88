package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
)

// errorResponse is the envelope every failed request returns.
type errorResponse struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP. Vendor errors surface their kind as
// the error code; everything unclassified is a 500 with a generic message so
// internals never leak.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var resp errorResponse

	if appErr, ok := errors.AsAppError(err); ok {
		resp.Error.Code = appErr.Code
		resp.Error.Message = appErr.Message
		resp.Error.Details = appErr.Details
		h.writeJSON(w, appErr.StatusCode, resp)
		return
	}

	if kind := vendor.KindOf(err); kind != vendor.KindUnknown && kind != "" {
		resp.Error.Code = string(kind)
		resp.Error.Message = err.Error()
		h.writeJSON(w, providerErrorStatus(kind), resp)
		return
	}

	h.logger.Error("unhandled error",
		zap.String("path", r.URL.Path), zap.Error(err))
	resp.Error.Code = "INTERNAL_ERROR"
	resp.Error.Message = "an internal error occurred"
	h.writeJSON(w, http.StatusInternalServerError, resp)
}

func providerErrorStatus(kind vendor.ErrorKind) int {
	switch kind {
	case vendor.KindBadRequest:
		return http.StatusBadRequest
	case vendor.KindBadCredentials:
		return http.StatusBadGateway
	case vendor.KindNoStock, vendor.KindNoBalance:
		return http.StatusConflict
	case vendor.KindRateLimited:
		return http.StatusTooManyRequests
	case vendor.KindTimeout:
		return http.StatusGatewayTimeout
	case vendor.KindLifecycleTerminal:
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}
