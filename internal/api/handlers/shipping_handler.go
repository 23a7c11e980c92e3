package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/models"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/repository"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/service"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/shipping"
)

const (
	maxBatchSize = 100
	maxBodyBytes = 1 << 20
)

// --- Request / Response DTOs ---

type BatchRequestBody struct {
	Requests []models.QuoteRequest `json:"requests"`
}

type BatchEntry struct {
	Quote  *models.Quote `json:"quote,omitempty"`
	Error  string        `json:"error,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

type BatchResponse struct {
	Results []BatchEntry `json:"results"`
}

// --- Handler struct & constructor ---

type ShippingHandler struct {
	service *service.ShippingService
	log     *zap.Logger
}

func NewShippingHandler(svc *service.ShippingService, log *zap.Logger) *ShippingHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShippingHandler{service: svc, log: log}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads a size-capped JSON body into v and writes the error
// response itself when that fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body_too_large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return false
	}
	return true
}

// errorCode maps a service error to its HTTP status and error code.
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, shipping.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, "database_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *ShippingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": code, "detail": err.Error()})
}

// --- Handlers ---

// QuoteItems handles POST /shipping/quote
func (h *ShippingHandler) QuoteItems(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	q, err := h.service.QuoteRequest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// QuoteBatch handles POST /shipping/quotes/batch
func (h *ShippingHandler) QuoteBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequestBody
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Requests) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch_too_large"})
		return
	}

	results, err := h.service.QuoteBatch(r.Context(), req.Requests)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := BatchResponse{Results: make([]BatchEntry, len(results))}
	for i, res := range results {
		if res.Err != nil {
			_, code := errorCode(res.Err)
			resp.Results[i] = BatchEntry{Error: code, Detail: res.Err.Error()}
			continue
		}
		resp.Results[i] = BatchEntry{Quote: res.Quote}
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuoteCart handles GET /shipping/carts/{userID}/quote
func (h *ShippingHandler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user required"})
		return
	}

	q, err := h.service.QuoteCart(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// QuoteOrder handles POST /orders/{orderID}/shipping
// computes the order's shipping and stores it on the order row
func (h *ShippingHandler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order required"})
		return
	}

	q, err := h.service.QuoteOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
