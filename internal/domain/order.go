package domain

import (
	"fmt"
	"strconv"
)

// Payment states reported by the ticketing platform.
const (
	PaymentConfirmed = "confirmed"
	PaymentPending   = "pending"
	PaymentRefunded  = "refunded"
)

// Order is the ticketing platform's read model of a purchase.
type Order struct {
	Code      string     `json:"code"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	TestMode  bool       `json:"testmode"`
	Positions []Position `json:"positions"`
	Payments  []Payment  `json:"payments"`
}

// Position is one admission (or add-on) inside an order.
type Position struct {
	PositionID    int    `json:"positionid"`
	Item          int64  `json:"item"`
	Variation     *int64 `json:"variation"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

// Payment is a payment attempt for an order. Amount is a decimal string, e.g. "25.00".
type Payment struct {
	Amount string `json:"amount"`
	State  string `json:"state"`
}

// AmountValue parses the payment amount.
func (p Payment) AmountValue() (float64, error) {
	v, err := strconv.ParseFloat(p.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse payment amount %q: %w", p.Amount, err)
	}
	return v, nil
}

// Confirmed reports whether the payment has cleared.
func (p Payment) Confirmed() bool {
	return p.State == PaymentConfirmed
}

// HasConfirmedPayment reports whether any payment of the order has cleared.
func (o Order) HasConfirmedPayment() bool {
	for _, p := range o.Payments {
		if p.Confirmed() {
			return true
		}
	}
	return false
}

// Key returns the ledger key of a position within its order.
func (o Order) Key(p Position) string {
	return fmt.Sprintf("%s-%d", o.Code, p.PositionID)
}

// Ticket converts a position of the order into a Ticket.
func (o Order) Ticket(p Position) Ticket {
	t := Ticket{
		OrderID:      o.Code,
		PositionID:   strconv.Itoa(p.PositionID),
		AttendeeName: p.AttendeeName,
		ItemType:     strconv.FormatInt(p.Item, 10),
	}
	if p.Variation != nil {
		t.Variation = strconv.FormatInt(*p.Variation, 10)
	}
	return t
}

// TicketsFor returns the tickets of the order whose attendee name matches exactly.
func (o Order) TicketsFor(name string) []Ticket {
	var out []Ticket
	for _, p := range o.Positions {
		if p.AttendeeName == name {
			out = append(out, o.Ticket(p))
		}
	}
	return out
}
