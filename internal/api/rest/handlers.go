package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/domain/errors"
	"github.com/FlashTheFire/nexnum-backend/internal/domain/vendor"
	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/repository"
	"github.com/FlashTheFire/nexnum-backend/internal/service/health"
	"github.com/FlashTheFire/nexnum-backend/internal/service/routing"
	syncsvc "github.com/FlashTheFire/nexnum-backend/internal/service/sync"
)

// Handler carries the service dependencies for every endpoint.
type Handler struct {
	router  *routing.Router
	sync    *syncsvc.Service
	runner  syncsvc.Runner
	monitor *health.Monitor
	vendors repository.VendorRepository
	logger  *zap.Logger
}

// NewHandler builds the API handler.
func NewHandler(
	router *routing.Router,
	sync *syncsvc.Service,
	runner syncsvc.Runner,
	monitor *health.Monitor,
	vendors repository.VendorRepository,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		router:  router,
		sync:    sync,
		runner:  runner,
		monitor: monitor,
		vendors: vendors,
		logger:  logger,
	}
}

// handleSync triggers a sync run. With a vendor it runs that vendor
// synchronously and returns its stats; without one it kicks off a full run in
// the background and returns immediately.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vendor string `json:"vendor,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, r, errors.NewValidationError("INVALID_BODY", "malformed request body"))
			return
		}
	}

	if req.Vendor != "" {
		stats, err := h.sync.SyncVendor(r.Context(), req.Vendor)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, stats)
		return
	}

	go func() {
		// Detached from the request: a full run outlives any HTTP timeout.
		if err := h.sync.SyncAll(context.Background(), h.runner); err != nil {
			h.logger.Error("background sync failed", zap.Error(err))
		}
	}()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var input routing.PurchaseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, r, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}
	if input.CountryCode == "" || input.ServiceCode == "" {
		h.writeError(w, r, errors.NewValidationError("MISSING_FIELDS",
			"country_code and service_code are required"))
		return
	}

	result, err := h.router.Buy(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleActivationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.router.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		// A terminal activation still reports its final state.
		if vendor.KindOf(err) == vendor.KindLifecycleTerminal && status != nil {
			h.writeJSON(w, http.StatusOK, status)
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleActivationCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.router.Cancel(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleActivationResend(w http.ResponseWriter, r *http.Request) {
	if err := h.router.Resend(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resend requested"})
}

func (h *Handler) handleActivationComplete(w http.ResponseWriter, r *http.Request) {
	if err := h.router.Complete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *Handler) handleQuotes(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	service := r.URL.Query().Get("service")
	if country == "" || service == "" {
		h.writeError(w, r, errors.NewValidationError("MISSING_FIELDS",
			"country and service query parameters are required"))
		return
	}

	quotes, err := h.router.Quotes(r.Context(), country, service)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"quotes": quotes})
}

func (h *Handler) handleTotalBalance(w http.ResponseWriter, r *http.Request) {
	total, err := h.router.TotalBalance(r.Context(), h.vendors)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"total_balance": total.String()})
}

// handleLowBalances reports vendors whose last known balance sits below their
// alert threshold.
func (h *Handler) handleLowBalances(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.vendors.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type lowBalance struct {
		Vendor    string `json:"vendor"`
		Balance   string `json:"balance"`
		Threshold string `json:"threshold"`
	}
	low := make([]lowBalance, 0)
	for _, v := range vendors {
		if v.BalanceLow() {
			low = append(low, lowBalance{
				Vendor:    v.Name,
				Balance:   v.Balance.String(),
				Threshold: v.BalanceThreshold.String(),
			})
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"vendors": low})
}

func (h *Handler) handleVendorHealth(w http.ResponseWriter, r *http.Request) {
	vendorName := r.PathValue("name")
	if !vendor.ValidSlug(vendorName) {
		h.writeError(w, r, errors.NewValidationError("INVALID_VENDOR", "invalid vendor slug"))
		return
	}
	picture, err := h.monitor.Health(r.Context(), vendorName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, picture)
}

// handleCircuitOverride pins a vendor's circuit open or closed, or clears the
// override.
func (h *Handler) handleCircuitOverride(w http.ResponseWriter, r *http.Request) {
	vendorName := r.PathValue("name")
	if !vendor.ValidSlug(vendorName) {
		h.writeError(w, r, errors.NewValidationError("INVALID_VENDOR", "invalid vendor slug"))
		return
	}

	var req struct {
		Action string `json:"action"` // open, close, clear
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, errors.NewValidationError("INVALID_BODY", "malformed request body"))
		return
	}

	var err error
	switch req.Action {
	case "open":
		err = h.monitor.ForceCircuit(r.Context(), vendorName, health.StateOpen)
	case "close":
		err = h.monitor.ForceCircuit(r.Context(), vendorName, health.StateClosed)
	case "clear":
		err = h.monitor.ClearCircuitForce(r.Context(), vendorName)
	default:
		h.writeError(w, r, errors.NewValidationError("INVALID_ACTION",
			"action must be open, close or clear"))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.router.BustVendorCache(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"action": req.Action})
}
