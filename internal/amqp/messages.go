package amqp

import (
	"encoding/json"
	"time"
)

// EventType names a domain change published to the worker.
type EventType string

const (
	TransactionCreated  EventType = "transaction.created"
	TransactionUpdated  EventType = "transaction.updated"
	TransactionDeleted  EventType = "transaction.deleted"
	CategoriesReordered EventType = "category.reordered"
	AccountReconcile    EventType = "account.reconcile"
)

// Event is a lightweight notification; the worker reads current state from
// storage rather than trusting the payload. AccountIDs and CategoryIDs hold
// every id touched, so an update that moves a transaction lists both sides.
type Event struct {
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	AccountIDs    []int64   `json:"account_ids,omitempty"`
	CategoryIDs   []int64   `json:"category_ids,omitempty"`
	Year          int       `json:"year,omitempty"`
	Month         int       `json:"month,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now()}
}

// IsTransaction reports whether the event concerns a transaction write.
func (e Event) IsTransaction() bool {
	switch e.Type {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event from JSON bytes
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
