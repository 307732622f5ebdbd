package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidID          = errors.New("invalid id")
	ErrCartHashRequired   = errors.New("cart hash required")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrTicketExists       = errors.New("ticket already exists")
	ErrOrderExists        = errors.New("an active order already exists for this cart")
	ErrTicketNameRequired = errors.New("ticket name required")
	ErrInvalidStockMode   = errors.New("invalid stock mode")
)

// StockShortage describes one ticket that could not be reserved or
// committed. ReservationCaused is the heuristic classification from
// the admission pass: the shortfall is attributed to other carts'
// live reservations when the raw counter alone would have sufficed.
// It is an approximation, not an exact classification.
type StockShortage struct {
	TicketID          string `json:"ticket_id"`
	Requested         int    `json:"requested"`
	Available         int    `json:"available"`
	ReservationCaused bool   `json:"reservation_caused"`
}

// SoldOut reports whether nothing at all is available.
func (s StockShortage) SoldOut() bool {
	return s.Available == 0 && !s.ReservationCaused
}

// InsufficientStockError carries per-ticket shortfall detail so the
// caller can distinguish sold-out, partially-available and
// held-by-others cases in user messaging.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	if len(e.Shortages) == 0 {
		return "insufficient stock"
	}
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		cause := "sold out"
		if s.ReservationCaused {
			cause = "held by other carts"
		} else if s.Available > 0 {
			cause = "partially available"
		}
		parts = append(parts, fmt.Sprintf("ticket %s: requested %d, available %d (%s)", s.TicketID, s.Requested, s.Available, cause))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// AsInsufficientStock unwraps err into an InsufficientStockError.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}
