package notifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"YieldHarbor/internal/model"
)

// EventType names what an Event carries.
type EventType string

const (
	EventWorth       EventType = "worth"
	EventTransaction EventType = "transaction"
	EventMode        EventType = "mode"
)

// Event is pushed to every subscriber of Account.
type Event struct {
	Type        EventType          `json:"type"`
	Account     string             `json:"account"`
	Worth       *model.Worth       `json:"worth,omitempty"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
	Mode        model.Mode         `json:"mode,omitempty"`
}

// WorthEvent wraps a refreshed worth.
func WorthEvent(w model.Worth) Event {
	return Event{Type: EventWorth, Account: w.Account, Worth: &w}
}

// TransactionEvent wraps a newly appended ledger entry.
func TransactionEvent(account string, tx model.Transaction) Event {
	return Event{Type: EventTransaction, Account: account, Transaction: &tx}
}

// ModeEvent announces a mode switch.
func ModeEvent(account string, m model.Mode) Event {
	return Event{Type: EventMode, Account: account, Mode: m}
}

// Encode renders the event as a JSON text frame.
func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	return b, nil
}

// String is a one-line summary for logs.
func (e Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s", e.Account, e.Type)
	switch {
	case e.Worth != nil:
		fmt.Fprintf(&b, " value=%s yield=%s", e.Worth.Value.StringFixed(6), e.Worth.Yield.StringFixed(6))
	case e.Transaction != nil:
		fmt.Fprintf(&b, " %s %s", e.Transaction.Kind, e.Transaction.Amount)
	case e.Mode != "":
		fmt.Fprintf(&b, " %s", e.Mode)
	}
	return b.String()
}
