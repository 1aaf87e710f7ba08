// Package events models inbound webhook deliveries as typed Updates and
// parses the platform's entry/messaging batch format.
package events

import (
	"errors"
	"log/slog"

	"github.com/tidwall/gjson"
)

// ErrBadEnvelope is returned when the webhook body is not a JSON object
// holding an "entry" array. Individual malformed events inside a valid
// envelope never produce this; they are skipped and counted instead.
var ErrBadEnvelope = errors.New("events: body is not an event batch")

// Parse wraps a raw webhook body in a Batch. The body must already have
// passed signature validation; Parse never mutates it.
func Parse(body []byte) (*Batch, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrBadEnvelope
	}
	entry := gjson.GetBytes(body, "entry")
	if !entry.IsArray() {
		return nil, ErrBadEnvelope
	}
	return &Batch{entries: entry.Array()}, nil
}

// Batch is a finite, consume-once sequence of Updates decoded lazily
// from one webhook delivery. It is not safe for concurrent use.
type Batch struct {
	entries []gjson.Result
	events  []gjson.Result // messaging events of the current entry
	skipped int
}

// Next returns the next Update in delivery order. It reports false once
// the batch is exhausted. Events that match no known shape, or that are
// missing a sender id, are skipped and counted rather than ending the
// batch: one corrupt event must not drop its siblings.
func (b *Batch) Next() (Update, bool) {
	for {
		for len(b.events) == 0 {
			if len(b.entries) == 0 {
				return Update{}, false
			}
			b.events = b.entries[0].Get("messaging").Array()
			b.entries = b.entries[1:]
		}

		ev := b.events[0]
		b.events = b.events[1:]

		u, err := decodeEvent(ev)
		if err != nil {
			b.skipped++
			slog.Debug("events: skipping malformed event", "err", err, "event", ev.String())
			continue
		}
		return u, true
	}
}

// Skipped returns how many events have been dropped as malformed so far.
func (b *Batch) Skipped() int {
	return b.skipped
}

// decodeEvent maps one messaging event to an Update. The platform may
// include incidental fields, so the known keys are checked in a fixed
// precedence order and only the first match is decoded.
func decodeEvent(ev gjson.Result) (Update, error) {
	if !ev.IsObject() {
		return Update{}, errors.New("event is not an object")
	}
	sender := ev.Get("sender.id").String()
	if sender == "" {
		return Update{}, errors.New("event has no sender id")
	}

	u := Update{
		SenderID:    sender,
		RecipientID: ev.Get("recipient.id").String(),
		Timestamp:   ev.Get("timestamp").Int(),
		Raw:         ev,
	}

	switch {
	case ev.Get("message").Exists():
		decodeMessage(&u, ev.Get("message"))
	case ev.Get("delivery").Exists():
		d := ev.Get("delivery")
		u.Type = TypeDeliveryConfirmed
		payload := &DeliveryPayload{
			Watermark: d.Get("watermark").Int(),
			Seq:       d.Get("seq").Int(),
		}
		for _, mid := range d.Get("mids").Array() {
			payload.MessageIDs = append(payload.MessageIDs, mid.String())
		}
		u.Delivery = payload
	case ev.Get("read").Exists():
		r := ev.Get("read")
		u.Type = TypeReadConfirmed
		u.Read = &ReadPayload{
			Watermark: r.Get("watermark").Int(),
			Seq:       r.Get("seq").Int(),
		}
	case ev.Get("postback").Exists():
		p := ev.Get("postback")
		u.Type = TypePostbackReceived
		payload := &PostbackPayload{Payload: p.Get("payload").String()}
		if ref := p.Get("referral"); ref.Exists() {
			payload.Referral = decodeReferral(ref)
		}
		u.Postback = payload
	case ev.Get("referral").Exists():
		u.Type = TypeReferralReceived
		u.Referral = decodeReferral(ev.Get("referral"))
	case ev.Get("optin").Exists():
		u.Type = TypeOptinReceived
		u.Optin = &OptinPayload{Ref: ev.Get("optin.ref").String()}
	case ev.Get("account_linking").Exists():
		al := ev.Get("account_linking")
		u.Type = TypeAccountLinked
		u.AccountLink = &AccountLinkPayload{
			Status:            al.Get("status").String(),
			AuthorizationCode: al.Get("authorization_code").String(),
		}
	default:
		return Update{}, errors.New("event matches no known shape")
	}

	return u, nil
}

func decodeReferral(ref gjson.Result) *ReferralPayload {
	return &ReferralPayload{
		Ref:    ref.Get("ref").String(),
		Source: ref.Get("source").String(),
		Kind:   ref.Get("type").String(),
	}
}

func decodeMessage(u *Update, msg gjson.Result) {
	payload := &MessagePayload{
		MessageID:  msg.Get("mid").String(),
		Seq:        msg.Get("seq").Int(),
		Text:       msg.Get("text").String(),
		QuickReply: msg.Get("quick_reply.payload").String(),
	}

	for _, att := range msg.Get("attachments").Array() {
		kind := att.Get("type").String()
		if kind == "location" {
			payload.Attachments = append(payload.Attachments, Attachment{
				Kind: kind,
				Coordinates: &Coordinates{
					Latitude:  att.Get("payload.coordinates.lat").Float(),
					Longitude: att.Get("payload.coordinates.long").Float(),
				},
			})
			continue
		}
		payload.Attachments = append(payload.Attachments, Attachment{
			Kind: kind,
			URL:  att.Get("payload.url").String(),
		})
	}

	if msg.Get("is_echo").Bool() {
		u.Type = TypeMessageEchoed
		payload.IsEcho = true
		payload.AppID = msg.Get("app_id").Int()
		payload.Metadata = msg.Get("metadata").String()
	} else {
		u.Type = TypeMessageReceived
	}
	u.Message = payload
}
