package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"flashline/internal/core/domain"
)

// AdmissionPort, ConfirmPort and PositionPort are the slices of the core
// services the HTTP layer needs.
type AdmissionPort interface {
	Buy(ctx context.Context, email, saleID string, holdTTLSec int) (domain.Admission, error)
}

type ConfirmPort interface {
	Confirm(ctx context.Context, email, saleID string, amountCents int64) (string, error)
}

type PositionPort interface {
	Position(ctx context.Context, email, saleID string) (domain.Position, error)
}

type HTTPHandler struct {
	admission AdmissionPort
	confirm   ConfirmPort
	position  PositionPort
}

func NewHTTPHandler(admission AdmissionPort, confirm ConfirmPort, position PositionPort) *HTTPHandler {
	return &HTTPHandler{admission: admission, confirm: confirm, position: position}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/buy", h.Buy)
	mux.HandleFunc("/api/position", h.Position)
	mux.HandleFunc("/api/confirm", h.Confirm)
}

type BuyRequest struct {
	Email      string `json:"email"`
	SaleID     string `json:"saleId"`
	HoldTTLSec int    `json:"holdTtlSec,omitempty"`
}

type BuyResponse struct {
	Queued        bool   `json:"queued"`
	Position      int64  `json:"position"`
	Size          int64  `json:"size"`
	HasActiveHold bool   `json:"hasActiveHold"`
	HoldTTLSec    int64  `json:"holdTtlSec"`
	Message       string `json:"message,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
}

func (h *HTTPHandler) Buy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admission, err := h.admission.Buy(r.Context(), req.Email, req.SaleID, req.HoldTTLSec)
	if err != nil {
		var purchased *domain.AlreadyPurchasedError
		if errors.As(err, &purchased) {
			writeJSON(w, http.StatusConflict, BuyResponse{
				Message: "already purchased",
				OrderID: purchased.OrderID,
			})
			return
		}
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BuyResponse{
		Queued:        admission.Queued,
		Position:      admission.Rank + 1,
		Size:          admission.LineSize,
		HasActiveHold: admission.HasActiveHold,
		HoldTTLSec:    int64(admission.HoldTTL.Seconds()),
	})
}

type PositionResponse struct {
	Status     string `json:"status"`
	Position   int64  `json:"position,omitempty"`
	Size       int64  `json:"size,omitempty"`
	HoldTTLSec int64  `json:"holdTtlSec,omitempty"`
}

func (h *HTTPHandler) Position(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pos, err := h.position.Position(r.Context(), r.URL.Query().Get("email"), r.URL.Query().Get("saleId"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	resp := PositionResponse{Status: string(pos.Status)}
	switch pos.Status {
	case domain.LineStatusReady:
		resp.HoldTTLSec = int64(pos.HoldTTL.Seconds())
	case domain.LineStatusQueued:
		resp.Position = pos.Rank + 1
		resp.Size = pos.LineSize
	}
	writeJSON(w, http.StatusOK, resp)
}

type ConfirmRequest struct {
	Email  string `json:"email"`
	SaleID string `json:"saleId"`
	Amount int64  `json:"amount"`
}

type ConfirmResponse struct {
	OK          bool   `json:"ok"`
	OrderID     string `json:"orderId,omitempty"`
	Message     string `json:"message,omitempty"`
	ClaimTTLSec int64  `json:"claimTtlSec,omitempty"`
	HoldTTLSec  int64  `json:"holdTtlSec,omitempty"`
}

func (h *HTTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID, err := h.confirm.Confirm(r.Context(), req.Email, req.SaleID, req.Amount)
	if err != nil {
		var busy *domain.ConfirmBusyError
		if errors.As(err, &busy) {
			writeJSON(w, http.StatusConflict, ConfirmResponse{
				Message:     "confirmation already in progress",
				ClaimTTLSec: int64(busy.ClaimTTL.Seconds()),
				HoldTTLSec:  int64(busy.HoldTTL.Seconds()),
			})
			return
		}
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{OK: true, OrderID: orderID})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Message string `json:"message"`
}

// writeFailure maps the error taxonomy to HTTP statuses. Internal-retryable
// kinds never reach here; they stay inside the job queue.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNoActiveHold):
		writeError(w, http.StatusForbidden, "no active hold")
	case errors.Is(err, domain.ErrSaleUnavailable):
		writeError(w, http.StatusConflict, "out of stock or sale not active")
	case errors.Is(err, domain.ErrConfirmInProgress):
		writeError(w, http.StatusConflict, "confirmation already in progress")
	case errors.Is(err, domain.ErrQueueUnavailable):
		writeError(w, http.StatusServiceUnavailable, "queue unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
