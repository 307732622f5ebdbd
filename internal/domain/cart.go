package domain

// CartItem is one requested line in a shopping session.
type CartItem struct {
	TicketID string
	Quantity int
}

// Cart is the contents of one shopping session, identified by an
// opaque hash that also partitions the reservation ledger.
type Cart struct {
	Hash  string
	Items []CartItem
}

// Empty reports whether there is anything to reserve or check out.
func (c Cart) Empty() bool {
	return c.Hash == "" || len(c.Items) == 0
}

// MergedItems combines duplicate lines for the same ticket into one,
// preserving first-seen order. Admission and checkout operate on these
// totals so a split line cannot be validated piecewise.
func (c Cart) MergedItems() []CartItem {
	merged := make([]CartItem, 0, len(c.Items))
	index := make(map[string]int, len(c.Items))
	for _, item := range c.Items {
		if i, ok := index[item.TicketID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.TicketID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
