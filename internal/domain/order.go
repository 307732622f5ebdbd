package domain

import "time"

// OrderItem is one purchased line with its computed price fields.
type OrderItem struct {
	TicketID  string
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// Order is a checkout aggregate tied back to its originating cart.
// LockToken is empty when the order is unlocked; a non-empty value is
// the token of the holder that won the compare-and-swap.
type Order struct {
	ID        string
	CartHash  string
	Status    OrderStatus
	LockToken string
	Items     []OrderItem
	Total     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MergedQuantities sums the order's line quantities per ticket,
// preserving first-seen order. Stock checks and counter adjustments
// work on these totals so duplicate lines cannot double-count.
func (o Order) MergedQuantities() []ReservedItem {
	merged := make([]ReservedItem, 0, len(o.Items))
	index := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		if i, ok := index[item.TicketID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.TicketID] = len(merged)
		merged = append(merged, ReservedItem{TicketID: item.TicketID, Quantity: item.Quantity})
	}
	return merged
}

// StatusTimestamp is one entry of an order's append-only status log.
type StatusTimestamp struct {
	Status     OrderStatus
	OccurredAt time.Time
}
