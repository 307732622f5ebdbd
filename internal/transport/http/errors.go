package http

import (
	"encoding/json"
	"net/http"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

const (
	codeMethodNotAllowed    = "method_not_allowed"
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidQuantity     = "invalid_quantity"
	codeCartHashRequired    = "cart_hash_required"
	codeTicketNameRequired  = "ticket_name_required"
	codeInvalidStockMode    = "invalid_stock_mode"
	codeTicketNotFound      = "ticket_not_found"
	codeTicketExists        = "ticket_already_exists"
	codeOrderNotFound       = "order_not_found"
	codeOrderExists         = "order_already_exists"
	codeUnknownStatus       = "unknown_status"
	codeInsufficientStock   = "insufficient_stock"
	codeForbidden           = "forbidden"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

type insufficientStockResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Shortages []domain.StockShortage `json:"shortages"`
}

// writeInsufficientStock carries the per-ticket shortfall detail so the
// client can tell sold-out, partially-available and held-by-others
// apart.
func writeInsufficientStock(w http.ResponseWriter, ise *domain.InsufficientStockError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)

	payload, err := json.Marshal(insufficientStockResponse{
		Error:     ise.Error(),
		Code:      codeInsufficientStock,
		Shortages: ise.Shortages,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
