package domain

// OrderStatus is a closed enumeration of order states.
type OrderStatus string

const (
	StatusCreated      OrderStatus = "created"
	StatusPending      OrderStatus = "pending"
	StatusCompleted    OrderStatus = "completed"
	StatusDenied       OrderStatus = "denied"
	StatusRefunded     OrderStatus = "refunded"
	StatusReversed     OrderStatus = "reversed"
	StatusNotCompleted OrderStatus = "not-completed"
)

// StatusCapabilities is the compile-time capability table for one
// status: which statuses must have been reached first, and how the
// status interacts with the stock counter.
type StatusCapabilities struct {
	// RequiredPrevious lists prerequisite statuses in the order the
	// engine must walk through them.
	RequiredPrevious []OrderStatus
	// DecreasesStock marks statuses whose attainment permanently
	// consumes inventory.
	DecreasesStock bool
	// RestoresStock marks statuses that hand consumed inventory back
	// (refunds and reversals of completed orders).
	RestoresStock bool
	// Terminal statuses accept no further transitions out.
	Terminal bool
}

var statusTable = map[OrderStatus]StatusCapabilities{
	StatusCreated: {},
	StatusPending: {
		RequiredPrevious: []OrderStatus{StatusCreated},
	},
	StatusCompleted: {
		RequiredPrevious: []OrderStatus{StatusCreated, StatusPending},
		DecreasesStock:   true,
	},
	StatusDenied: {
		RequiredPrevious: []OrderStatus{StatusCreated, StatusPending},
	},
	StatusRefunded: {
		RequiredPrevious: []OrderStatus{StatusCreated, StatusPending, StatusCompleted},
		RestoresStock:    true,
		Terminal:         true,
	},
	StatusReversed: {
		RequiredPrevious: []OrderStatus{StatusCreated, StatusPending, StatusCompleted},
		RestoresStock:    true,
		Terminal:         true,
	},
	StatusNotCompleted: {
		RequiredPrevious: []OrderStatus{StatusCreated},
		Terminal:         true,
	},
}

// ResolveStatus returns the canonical status for a raw string.
func ResolveStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if _, ok := statusTable[s]; !ok {
		return "", ErrUnknownStatus
	}
	return s, nil
}

// Capabilities returns the capability entry for a known status. The
// zero value is returned for unknown statuses; resolve first.
func (s OrderStatus) Capabilities() StatusCapabilities {
	return statusTable[s]
}

// Active reports whether an order in this status still occupies the
// one-active-order-per-cart slot.
func (s OrderStatus) Active() bool {
	return s == StatusCreated || s == StatusPending
}
