package domain

import "time"

// StockReservation is a time-bounded hold on ticket stock for one
// cart. Records are replaced wholesale, never mutated in place.
type StockReservation struct {
	TicketID  string    `json:"ticket_id"`
	CartHash  string    `json:"cart_hash"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the reservation still counts against stock.
func (r StockReservation) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// ReservedItem is one line of a cart-level reservation batch.
type ReservedItem struct {
	TicketID string `json:"ticket_id"`
	Quantity int    `json:"quantity"`
}

// CartReservation summarizes every reservation held by one cart so
// release can run in one pass without re-deriving the cart contents.
type CartReservation struct {
	CartHash   string         `json:"cart_hash"`
	ReservedAt time.Time      `json:"reserved_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Items      []ReservedItem `json:"items"`
}

// TicketIndex maps cart hash to the reservation record key for one
// ticket. It is advisory: entries can go stale and are healed by the
// sweeper and by opportunistic eviction during admission.
type TicketIndex map[string]string
