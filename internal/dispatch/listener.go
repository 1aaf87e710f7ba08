package dispatch

import (
	"context"

	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/messages"
)

// Listener interfaces support the method-override calling convention:
// implement the methods for the variants you care about on one type and
// Bind it. Each implemented method registers as a handler on the same
// dispatch table On uses, so the two styles mix freely.

type MessageReceivedListener interface {
	MessageReceived(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type MessageEchoedListener interface {
	MessageEchoed(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type DeliveryConfirmedListener interface {
	DeliveryConfirmed(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type ReadConfirmedListener interface {
	ReadConfirmed(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type PostbackReceivedListener interface {
	PostbackReceived(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type ReferralReceivedListener interface {
	ReferralReceived(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type OptinReceivedListener interface {
	OptinReceived(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

type AccountLinkedListener interface {
	AccountLinked(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)
}

// Bind registers every listener method l implements.
func (d *Dispatcher) Bind(l any) {
	if ml, ok := l.(MessageReceivedListener); ok {
		d.On(events.TypeMessageReceived, ml.MessageReceived)
	}
	if ml, ok := l.(MessageEchoedListener); ok {
		d.On(events.TypeMessageEchoed, ml.MessageEchoed)
	}
	if ml, ok := l.(DeliveryConfirmedListener); ok {
		d.On(events.TypeDeliveryConfirmed, ml.DeliveryConfirmed)
	}
	if ml, ok := l.(ReadConfirmedListener); ok {
		d.On(events.TypeReadConfirmed, ml.ReadConfirmed)
	}
	if ml, ok := l.(PostbackReceivedListener); ok {
		d.On(events.TypePostbackReceived, ml.PostbackReceived)
	}
	if ml, ok := l.(ReferralReceivedListener); ok {
		d.On(events.TypeReferralReceived, ml.ReferralReceived)
	}
	if ml, ok := l.(OptinReceivedListener); ok {
		d.On(events.TypeOptinReceived, ml.OptinReceived)
	}
	if ml, ok := l.(AccountLinkedListener); ok {
		d.On(events.TypeAccountLinked, ml.AccountLinked)
	}
}
