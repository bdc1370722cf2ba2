package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type enumerates supported inventory event types.
type Type string

const (
	// TypeSellDown records a simulated customer sale.
	TypeSellDown Type = "sell_down"
	// TypeReturns records stock returned to the sales floor.
	TypeReturns Type = "returns"
	// TypeShrink records spoilage or loss.
	TypeShrink Type = "shrink"
	// TypeDailyExpiry records lots zeroed after their expiry date.
	TypeDailyExpiry Type = "daily_expiry"
	// TypeReceiving records backroom replenishment.
	TypeReceiving Type = "receiving"
	// TypeFlagLowMovement mirrors a low-movement detector flag.
	TypeFlagLowMovement Type = "flag_low_movement"
	// TypeFlagOverstock mirrors an overstock detector flag.
	TypeFlagOverstock Type = "flag_overstock"
	// TypeRecallQuarantine records stock moved into quarantine.
	TypeRecallQuarantine Type = "recall_quarantine"
)

// Event is an immutable inventory activity record. Qty is the magnitude of the
// movement; Before and After are the location quantity surrounding it.
type Event struct {
	ID      uuid.UUID `json:"id"`
	TS      time.Time `json:"ts"`
	Type    Type      `json:"type"`
	Product string    `json:"product"`
	Lot     string    `json:"lot,omitempty"`
	Qty     float64   `json:"qty"`
	Before  float64   `json:"before"`
	After   float64   `json:"after"`
	Source  string    `json:"source"`
}

// New constructs an Event with a fresh identifier.
func New(ts time.Time, eventType Type, product, lot string, qty, before, after float64, source string) Event {
	return Event{
		ID:      uuid.New(),
		TS:      ts.UTC(),
		Type:    eventType,
		Product: product,
		Lot:     lot,
		Qty:     qty,
		Before:  before,
		After:   after,
		Source:  source,
	}
}

// Filter narrows a sink query.
type Filter struct {
	Product string
	Types   []Type
	Since   time.Time
	Limit   int
}

// Matches reports whether the event satisfies the filter.
func (f Filter) Matches(e Event) bool {
	if f.Product != "" && e.Product != f.Product {
		return false
	}
	if !f.Since.IsZero() && e.TS.Before(f.Since) {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Sink is an append-only, queryable event log.
type Sink interface {
	Append(ctx context.Context, evts ...Event) error
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// ErrSinkClosed indicates the sink no longer accepts writes.
var ErrSinkClosed = errors.New("events: sink closed")
