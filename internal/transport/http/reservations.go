package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/the-events-calendar/event-tickets-sub001/internal/clock"
	"github.com/the-events-calendar/event-tickets-sub001/internal/domain"
)

// StockReserver is the minimal interface needed to hold cart stock.
type StockReserver interface {
	Reserve(ctx context.Context, cart domain.Cart) error
}

// StockReleaser frees a cart's reservations.
type StockReleaser interface {
	Release(ctx context.Context, cartHash string) error
}

// HandleReserve returns an HTTP handler for reserving cart stock.
func HandleReserve(svc StockReserver, clk clock.Clock) http.HandlerFunc {
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

		err := svc.Reserve(r.Context(), req.cart())
		if err != nil {
			if ise, ok := domain.AsInsufficientStock(err); ok {
				writeInsufficientStock(w, ise)
				return
			}
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, reserveResponse{
			CartHash:   req.CartHash,
			ReservedAt: clk.Now(),
		})
	}
}

// HandleRelease returns an HTTP handler for DELETE /reservations/{cart_hash}.
func HandleRelease(svc StockReleaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		cartHash := strings.TrimPrefix(r.URL.Path, "/reservations/")
		if cartHash == "" || strings.Contains(cartHash, "/") {
			writeError(w, http.StatusBadRequest, codeCartHashRequired, "cart hash required")
			return
		}

		if err := svc.Release(r.Context(), cartHash); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type reserveItem struct {
	TicketID string `json:"ticket_id"`
	Quantity int    `json:"quantity"`
}

type reserveRequest struct {
	CartHash string        `json:"cart_hash"`
	Items    []reserveItem `json:"items"`
}

func (r reserveRequest) validate() error {
	if r.CartHash == "" {
		return domain.ErrCartHashRequired
	}
	for _, item := range r.Items {
		if item.TicketID == "" {
			return domain.ErrInvalidID
		}
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return nil
}

func (r reserveRequest) cart() domain.Cart {
	items := make([]domain.CartItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, domain.CartItem{TicketID: item.TicketID, Quantity: item.Quantity})
	}
	return domain.Cart{Hash: r.CartHash, Items: items}
}

type reserveResponse struct {
	CartHash   string    `json:"cart_hash"`
	ReservedAt time.Time `json:"reserved_at"`
}

// writeDomainError maps domain sentinels to HTTP statuses; anything
// unrecognized is an internal error, logged upstream.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCartHashRequired):
		writeError(w, http.StatusBadRequest, codeCartHashRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrTicketNameRequired):
		writeError(w, http.StatusBadRequest, codeTicketNameRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidStockMode):
		writeError(w, http.StatusBadRequest, codeInvalidStockMode, err.Error())
	case errors.Is(err, domain.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, codeUnknownStatus, err.Error())
	case errors.Is(err, domain.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, codeTicketNotFound, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrTicketExists):
		writeError(w, http.StatusConflict, codeTicketExists, err.Error())
	case errors.Is(err, domain.ErrOrderExists):
		writeError(w, http.StatusConflict, codeOrderExists, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
