package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	Checkout(ctx context.Context, cart domain.Cart, priceFor func(ticketID string) (float64, error)) (domain.Order, error)
}

// TicketPricer resolves current ticket prices during checkout.
type TicketPricer interface {
	GetTicket(ctx context.Context, id string) (domain.Ticket, error)
}

// StatusModifier is the status engine surface the handlers need.
type StatusModifier interface {
	ModifyStatus(ctx context.Context, orderID, status string, extra map[string]any) (bool, error)
	IsLocked(ctx context.Context, orderID string) (bool, error)
}

// HandleCheckout returns an HTTP handler for POST /checkout.
func HandleCheckout(svc CheckoutService, tickets TicketPricer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reserveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := req.validate(); err != nil {
			writeDomainError(w, err)
			return
		}

		priceFor := func(ticketID string) (float64, error) {
			t, err := tickets.GetTicket(r.Context(), ticketID)
			if err != nil {
				return 0, err
			}
			return t.Price, nil
		}

		order, err := svc.Checkout(r.Context(), req.cart(), priceFor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toOrderResponse(order))
	}
}

// HandleOrder routes /orders/{id}/status and /orders/{id}/lock.
func HandleOrder(svc StatusModifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/orders/")
		orderID, action, _ := strings.Cut(rest, "/")
		if orderID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "order id required")
			return
		}

		switch action {
		case "status":
			handleModifyStatus(svc, orderID, w, r)
		case "lock":
			handleIsLocked(svc, orderID, w, r)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleModifyStatus(svc StatusModifier, orderID string, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	var req modifyStatusRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, codeUnknownStatus, "status required")
		return
	}

	updated, err := svc.ModifyStatus(r.Context(), orderID, req.Status, req.Extra)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modifyStatusResponse{Updated: updated})
}

func handleIsLocked(svc StatusModifier, orderID string, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	locked, err := svc.IsLocked(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse{Locked: locked})
}

type modifyStatusRequest struct {
	Status string         `json:"status"`
	Extra  map[string]any `json:"extra,omitempty"`
}

type modifyStatusResponse struct {
	Updated bool `json:"updated"`
}

type lockResponse struct {
	Locked bool `json:"locked"`
}

type orderItemResponse struct {
	TicketID  string  `json:"ticket_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	CartHash  string              `json:"cart_hash"`
	Status    string              `json:"status"`
	Items     []orderItemResponse `json:"items"`
	Total     float64             `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			TicketID:  it.TicketID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return orderResponse{
		ID:        o.ID,
		CartHash:  o.CartHash,
		Status:    string(o.Status),
		Items:     items,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
	}
}
