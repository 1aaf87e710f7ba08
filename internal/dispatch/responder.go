package dispatch

import (
	"context"

	"github.com/boomerangbot/boomerang/internal/messages"
	"github.com/boomerangbot/boomerang/internal/send"
)

// Responder is the reply capability supplied to a handler, bound to the
// sender of the Update being processed. It supports multi-step
// exchanges: acknowledge first, reply later.
type Responder struct {
	sender      Sender
	recipientID string
}

// RecipientID returns the sender the Responder replies to.
func (r *Responder) RecipientID() string {
	return r.recipientID
}

// Reply sends a message back to the Update's sender.
func (r *Responder) Reply(ctx context.Context, msg *messages.Message) (send.Result, error) {
	return r.sender.Send(ctx, r.recipientID, msg)
}

// ReplyText sends a plain text reply.
func (r *Responder) ReplyText(ctx context.Context, text string) (send.Result, error) {
	return r.sender.Send(ctx, r.recipientID, messages.NewText(text))
}

// Acknowledge marks the conversation seen and turns the typing
// indicator on, best-effort.
func (r *Responder) Acknowledge(ctx context.Context) {
	r.sender.Acknowledge(ctx, r.recipientID)
}

// SendAction sends a single sender action.
func (r *Responder) SendAction(ctx context.Context, action send.Action) (send.Result, error) {
	return r.sender.SendAction(ctx, r.recipientID, action)
}
