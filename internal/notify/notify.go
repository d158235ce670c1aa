// Package notify carries best-effort realtime events from the POS services to
// kitchen and cashier screens. Delivery is at-least-once and unordered; no caller
// ever fails because a notification could not be sent.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Group string

const (
	GroupKitchen Group = "cocina"
	GroupCashier Group = "caja"
	GroupAll     Group = "todos"
)

func (g Group) Valid() bool {
	switch g {
	case GroupKitchen, GroupCashier, GroupAll:
		return true
	}
	return false
}

type EventType string

const (
	OrderCreated       EventType = "order.created"
	OrderUpdated       EventType = "order.updated"
	OrderStatusChanged EventType = "order.status_changed"
	InvoiceIssued      EventType = "invoice.issued"
	CashSessionOpened  EventType = "cash_session.opened"
	CashSessionClosed  EventType = "cash_session.closed"
	CAIActivated       EventType = "cai.activated"
)

// Event IDs let subscribers drop duplicates of an at-least-once delivery.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Groups     []Group        `json:"groups"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
	Origin     string         `json:"origin,omitempty"`
}

func NewEvent(t EventType, payload map[string]any, groups ...Group) Event {
	if len(groups) == 0 {
		groups = []Group{GroupAll}
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Groups:     groups,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// For reports whether a subscriber of group g should receive the event.
func (e Event) For(g Group) bool {
	if g == GroupAll {
		return true
	}
	for _, eg := range e.Groups {
		if eg == g || eg == GroupAll {
			return true
		}
	}
	return false
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Emit publishes ev and logs, rather than returns, any failure.
func Emit(ctx context.Context, n Notifier, log *zap.Logger, ev Event) {
	if n == nil {
		return
	}
	if err := n.Publish(ctx, ev); err != nil && log != nil {
		log.Warn("notification not delivered",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
