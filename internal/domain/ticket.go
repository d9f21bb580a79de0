package domain

// Ticket is a purchased admission as returned by the ticketing platform.
// Tickets are immutable once fetched.
type Ticket struct {
	OrderID      string `json:"order_id"`
	PositionID   string `json:"position_id"`
	AttendeeName string `json:"attendee_name"`
	ItemType     string `json:"item_type"`
	Variation    string `json:"variation,omitempty"` // empty when the item has no variation
}

// Identity returns the ledger key of the ticket: order code and position joined by a dash.
func (t Ticket) Identity() string {
	return t.OrderID + "-" + t.PositionID
}

// HasVariation reports whether the ticket was bought with an item variation.
func (t Ticket) HasVariation() bool {
	return t.Variation != ""
}

// DedupeTickets collapses tickets sharing an identity. The first occurrence wins and
// the input order is preserved.
func DedupeTickets(tickets []Ticket) []Ticket {
	if len(tickets) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tickets))
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		id := t.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, t)
	}
	return out
}
