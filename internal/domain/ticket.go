package domain

import "time"

// StockMode describes where a ticket's capacity is accounted.
type StockMode string

const (
	// StockModeOwn means the ticket owns its stock counter and is
	// validated per ticket.
	StockModeOwn StockMode = "own"
	// StockModeUnlimited means the ticket never runs out.
	StockModeUnlimited StockMode = "unlimited"
	// StockModeGlobal means the ticket draws from a shared event-level
	// pool; availability is validated at the pool, not per ticket.
	StockModeGlobal StockMode = "global"
	// StockModeCapacity delegates stock to an external seat-management
	// subsystem.
	StockModeCapacity StockMode = "capacity"
)

// Ticket represents a sellable ticket type with its stock counter.
type Ticket struct {
	ID        string
	Name      string
	EventName string
	Price     float64
	Stock     int
	Sales     int
	StockMode StockMode
	CreatedAt time.Time
}

// ManagesOwnStock reports whether per-ticket stock validation applies.
func (t Ticket) ManagesOwnStock() bool {
	return t.StockMode == StockModeOwn
}
