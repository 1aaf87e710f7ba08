package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/messages"
	"github.com/boomerangbot/boomerang/internal/send"
)

// fakeSender records outbound calls in order.
type fakeSender struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSender) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSender) Send(_ context.Context, recipientID string, msg *messages.Message) (send.Result, error) {
	f.record("send:%s:%s", recipientID, msg.Text)
	return send.Result{MessageID: "mid.fake"}, nil
}

func (f *fakeSender) SendAction(_ context.Context, recipientID string, action send.Action) (send.Result, error) {
	f.record("action:%s:%s", recipientID, action)
	return send.Result{}, nil
}

func (f *fakeSender) Acknowledge(_ context.Context, recipientID string) {
	f.record("action:%s:%s", recipientID, send.ActionMarkSeen)
	f.record("action:%s:%s", recipientID, send.ActionTypingOn)
}

func (f *fakeSender) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func update(sender, text string) events.Update {
	return events.Update{
		Type:     events.TypeMessageReceived,
		SenderID: sender,
		Message:  &events.MessagePayload{Text: text},
	}
}

func TestSameSenderIsSerialized(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	var mu sync.Mutex
	var log []string
	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		mu.Lock()
		log = append(log, "start:"+u.Message.Text)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		log = append(log, "end:"+u.Message.Text)
		mu.Unlock()
		return nil, nil
	})

	d.Enqueue(update("U1", "first"))
	d.Enqueue(update("U1", "second"))
	d.Stop(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"start:first", "end:first", "start:second", "end:second"}
	if len(log) != len(want) {
		t.Fatalf("log = %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %q, want %q (second update started before first completed)", i, log[i], want[i])
		}
	}
}

func TestDistinctSendersRunConcurrently(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	aStarted := make(chan struct{})
	bStarted := make(chan struct{})
	var overlapped sync.WaitGroup
	overlapped.Add(2)

	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		defer overlapped.Done()
		var mine, theirs chan struct{}
		if u.SenderID == "A" {
			mine, theirs = aStarted, bStarted
		} else {
			mine, theirs = bStarted, aStarted
		}
		close(mine)
		// Block until the other conversation has also started. Only
		// possible if the two senders really run concurrently.
		select {
		case <-theirs:
		case <-time.After(2 * time.Second):
			t.Error("conversations did not overlap")
		}
		return nil, nil
	})

	d.Enqueue(update("A", "hello"))
	d.Enqueue(update("B", "hello"))
	overlapped.Wait()
	d.Stop(time.Second)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		})
	}

	d.Enqueue(update("U1", "hi"))
	d.Stop(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("invocation order = %v", order)
	}
}

func TestHandlerFailureDoesNotCancelSiblings(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	var mu sync.Mutex
	var ran []string
	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		return nil, errors.New("boom")
	})
	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		panic("worse")
	})
	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		mu.Lock()
		ran = append(ran, u.Message.Text)
		mu.Unlock()
		return nil, nil
	})

	d.Enqueue(update("U1", "one"))
	d.Enqueue(update("U1", "two"))
	d.Stop(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 {
		t.Errorf("surviving handler ran %d times, want 2: %v", len(ran), ran)
	}
}

func TestReturnedMessageIsSentToSender(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		return messages.NewText("pong"), nil
	})

	d.Enqueue(update("U1", "ping"))
	d.Stop(time.Second)

	calls := sender.snapshot()
	if len(calls) != 1 || calls[0] != "send:U1:pong" {
		t.Errorf("calls = %v", calls)
	}
}

func TestResponderExplicitReply(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		r.Acknowledge(ctx)
		if _, err := r.ReplyText(ctx, "done"); err != nil {
			return nil, err
		}
		return nil, nil
	})

	d.Enqueue(update("U1", "work"))
	d.Stop(time.Second)

	want := []string{"action:U1:mark_seen", "action:U1:typing_on", "send:U1:done"}
	calls := sender.snapshot()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestCatchallRunsAfterSpecific(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	var mu sync.Mutex
	var order []string
	d.OnAny(func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		mu.Lock()
		order = append(order, "any")
		mu.Unlock()
		return nil, nil
	})
	d.On(events.TypeMessageReceived, func(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
		mu.Lock()
		order = append(order, "specific")
		mu.Unlock()
		return nil, nil
	})

	d.Enqueue(update("U1", "hi"))
	d.Stop(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "specific" || order[1] != "any" {
		t.Errorf("order = %v", order)
	}
}

func TestEnqueueAfterStopIsRejected(t *testing.T) {
	d := New(&fakeSender{})
	d.Stop(time.Second)
	if d.Enqueue(update("U1", "late")) {
		t.Error("expected Enqueue to refuse updates after Stop")
	}
}

func TestEnqueueRejectsEmptySender(t *testing.T) {
	d := New(&fakeSender{})
	defer d.Stop(time.Second)
	if d.Enqueue(events.Update{Type: events.TypeMessageReceived}) {
		t.Error("expected Enqueue to refuse an update without a sender id")
	}
}

// echoListener exercises the method-override calling convention.
type echoListener struct {
	mu   sync.Mutex
	seen []string
}

func (l *echoListener) MessageReceived(ctx context.Context, r *Responder, u events.Update) (*messages.Message, error) {
	l.mu.Lock()
	l.seen = append(l.seen, u.Message.Text)
	l.mu.Unlock()
	return messages.NewText(u.Message.Text), nil
}

func TestBindListener(t *testing.T) {
	sender := &fakeSender{}
	d := New(sender)

	l := &echoListener{}
	d.Bind(l)

	d.Enqueue(update("U1", "hi"))
	// Listener only implements MessageReceived; other variants must not match.
	d.Enqueue(events.Update{Type: events.TypePostbackReceived, SenderID: "U1", Postback: &events.PostbackPayload{Payload: "p"}})
	d.Stop(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.seen) != 1 || l.seen[0] != "hi" {
		t.Errorf("listener saw %v", l.seen)
	}
	calls := sender.snapshot()
	if len(calls) != 1 || calls[0] != "send:U1:hi" {
		t.Errorf("calls = %v", calls)
	}
}
