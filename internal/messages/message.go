// Package messages composes outbound Send API payloads: plain text,
// media attachments, quick replies and structured templates.
package messages

import "errors"

// ErrEmptyMessage is returned when a Message has neither text nor an
// attachment, which the platform rejects.
var ErrEmptyMessage = errors.New("messages: message requires text or an attachment")

// Message is one outbound message. It is built by application code and
// consumed once by the send client; nothing mutates it after that.
type Message struct {
	Text         string
	Attachment   Attachment
	QuickReplies []QuickReply
	// Metadata is a developer-defined string echoed back on the webhook.
	Metadata string
}

// Text returns a plain text Message.
func NewText(text string) *Message {
	return &Message{Text: text}
}

// WithAttachment returns a Message carrying only the given attachment.
func WithAttachment(att Attachment) *Message {
	return &Message{Attachment: att}
}

// Payload converts the message to the JSON structure expected under the
// Send API's "message" key.
func (m *Message) Payload() (map[string]any, error) {
	if m.Text == "" && m.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	payload := map[string]any{}
	if m.Text != "" {
		payload["text"] = m.Text
	}
	if m.Attachment != nil {
		payload["attachment"] = m.Attachment.AttachmentPayload()
	}
	if len(m.QuickReplies) > 0 {
		replies := make([]map[string]any, 0, len(m.QuickReplies))
		for _, qr := range m.QuickReplies {
			replies = append(replies, qr.payload())
		}
		payload["quick_replies"] = replies
	}
	if m.Metadata != "" {
		payload["metadata"] = m.Metadata
	}
	return payload, nil
}

// Attachment is anything that can be sent under a message's
// "attachment" key: media by URL or a structured template.
type Attachment interface {
	AttachmentPayload() map[string]any
}

// MediaAttachment references media by URL or by a previously uploaded
// attachment id.
type MediaAttachment struct {
	// Kind is one of "image", "audio", "video" or "file".
	Kind string
	URL  string
	// AttachmentID references media registered via the upload API;
	// mutually exclusive with URL.
	AttachmentID string
}

func (a MediaAttachment) AttachmentPayload() map[string]any {
	inner := map[string]any{}
	if a.AttachmentID != "" {
		inner["attachment_id"] = a.AttachmentID
	} else {
		inner["url"] = a.URL
	}
	return map[string]any{
		"type":    a.Kind,
		"payload": inner,
	}
}

// QuickReply is one suggested reply chip shown with a message. The
// Payload string comes back on the resulting message event.
type QuickReply struct {
	Title    string
	Payload  string
	ImageURL string
}

func (qr QuickReply) payload() map[string]any {
	out := map[string]any{
		"content_type": "text",
		"title":        qr.Title,
		"payload":      qr.Payload,
	}
	if qr.ImageURL != "" {
		out["image_url"] = qr.ImageURL
	}
	return out
}
