// Package dispatch routes parsed Updates to registered handlers,
// serialising each conversation while running distinct conversations
// concurrently.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/messages"
	"github.com/boomerangbot/boomerang/internal/send"
)

// Sender is the outbound capability handlers reply through. *send.Client
// implements it; tests substitute fakes.
type Sender interface {
	Send(ctx context.Context, recipientID string, msg *messages.Message) (send.Result, error)
	SendAction(ctx context.Context, recipientID string, action send.Action) (send.Result, error)
	Acknowledge(ctx context.Context, recipientID string)
}

// Handler processes one Update. A non-nil returned message is sent to
// the Update's sender automatically; alternatively the handler may
// reply explicitly through the Responder. Doing both acts twice on the
// same Update, which is the application's responsibility to avoid.
type Handler func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error)

// conversation is the per-sender dispatch queue. A sender is either
// idle (no drain goroutine) or processing (one drain goroutine working
// through pending in FIFO order).
type conversation struct {
	pending []events.Update
	running bool
}

// Dispatcher owns the handler table and the per-sender conversation
// state. Register handlers before traffic starts; Enqueue and Stop are
// safe for concurrent use.
type Dispatcher struct {
	sender Sender

	mu            sync.Mutex
	handlers      map[events.Type][]Handler
	catchall      []Handler
	conversations map[string]*conversation
	stopped       bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Dispatcher replying through the given Sender.
func New(sender Sender) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:        sender,
		handlers:      make(map[events.Type][]Handler),
		conversations: make(map[string]*conversation),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// On registers a handler for one Update variant. Handlers run in
// registration order.
func (d *Dispatcher) On(t events.Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// OnAny registers a handler invoked for every Update variant, after the
// variant-specific handlers.
func (d *Dispatcher) OnAny(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catchall = append(d.catchall, h)
}

// Enqueue hands an Update to its sender's conversation. If the sender
// is idle a drain goroutine starts; if it is already processing, the
// Update queues behind the current one so replies within a conversation
// never reorder. Returns false once the dispatcher has been stopped.
func (d *Dispatcher) Enqueue(u events.Update) bool {
	if u.SenderID == "" {
		return false
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	conv, ok := d.conversations[u.SenderID]
	if !ok {
		conv = &conversation{}
		d.conversations[u.SenderID] = conv
	}
	conv.pending = append(conv.pending, u)
	start := !conv.running
	if start {
		conv.running = true
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if start {
		go d.drain(conv)
	}
	return true
}

// drain works through a conversation's queue until it is empty, then
// marks the conversation idle. The empty-check and the idle transition
// happen under the same lock as Enqueue's check-then-start, so exactly
// one goroutine owns a sender at a time.
func (d *Dispatcher) drain(conv *conversation) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(conv.pending) == 0 {
			conv.running = false
			d.mu.Unlock()
			return
		}
		u := conv.pending[0]
		conv.pending = conv.pending[1:]
		d.mu.Unlock()

		d.process(u)
	}
}

// process runs every matching handler for one Update. Handler failures
// and panics are contained here: they are logged with context and do
// not affect sibling handlers or later Updates.
func (d *Dispatcher) process(u events.Update) {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.handlers[u.Type])+len(d.catchall))
	handlers = append(handlers, d.handlers[u.Type]...)
	handlers = append(handlers, d.catchall...)
	d.mu.Unlock()

	responder := &Responder{sender: d.sender, recipientID: u.SenderID}
	for _, h := range handlers {
		d.runHandler(h, responder, u)
	}
}

func (d *Dispatcher) runHandler(h Handler, r *Responder, u events.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("dispatch: handler panicked",
				"sender", u.SenderID, "type", u.Type, "panic", rec)
		}
	}()

	reply, err := h(d.ctx, r, u)
	if err != nil {
		slog.Error("dispatch: handler failed",
			"sender", u.SenderID, "type", u.Type, "err", err)
		return
	}
	if reply != nil {
		if _, err := d.sender.Send(d.ctx, u.SenderID, reply); err != nil {
			slog.Error("dispatch: reply send failed",
				"sender", u.SenderID, "type", u.Type, "err", err)
		}
	}
}

// Stop refuses new Updates, lets in-flight conversations finish within
// the grace period, then cancels the context handlers and sends run
// under. Cancellation is cooperative: it takes effect at the next I/O
// or timer wait.
func (d *Dispatcher) Stop(grace time.Duration) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		slog.Warn("dispatch: grace period expired, cancelling in-flight conversations")
		d.cancel()
		<-done
	}
	d.cancel()
}
