package events

import "github.com/tidwall/gjson"

// Type identifies the variant of an inbound Update.
type Type string

const (
	TypeMessageReceived   Type = "message_received"
	TypeMessageEchoed     Type = "message_echoed"
	TypeDeliveryConfirmed Type = "delivery_confirmed"
	TypeReadConfirmed     Type = "read_confirmed"
	TypePostbackReceived  Type = "postback_received"
	TypeReferralReceived  Type = "referral_received"
	TypeOptinReceived     Type = "optin_received"
	TypeAccountLinked     Type = "account_linked"
)

// Types lists every Update variant in the parser's precedence order.
var Types = []Type{
	TypeMessageReceived,
	TypeMessageEchoed,
	TypeDeliveryConfirmed,
	TypeReadConfirmed,
	TypePostbackReceived,
	TypeReferralReceived,
	TypeOptinReceived,
	TypeAccountLinked,
}

// Update is one parsed inbound conversational event. Exactly one of the
// payload pointers matching Type is set. Raw retains the original
// messaging event so handlers can reach fields the model doesn't cover.
// Updates are immutable once constructed.
type Update struct {
	Type        Type
	SenderID    string
	RecipientID string
	// Timestamp is the platform's epoch-millisecond event time, not a
	// locally generated one.
	Timestamp int64
	Raw       gjson.Result

	Message     *MessagePayload
	Delivery    *DeliveryPayload
	Read        *ReadPayload
	Postback    *PostbackPayload
	Referral    *ReferralPayload
	Optin       *OptinPayload
	AccountLink *AccountLinkPayload
}

// MessagePayload carries a received (or echoed) message.
type MessagePayload struct {
	MessageID   string
	Seq         int64
	Text        string
	QuickReply  string // developer-defined quick reply payload, if any
	Attachments []Attachment

	// Echo-only fields.
	IsEcho   bool
	AppID    int64
	Metadata string
}

// Attachment is a media or location attachment on a received message.
type Attachment struct {
	// Kind is one of "image", "audio", "video", "file" or "location".
	Kind        string
	URL         string
	Coordinates *Coordinates // set only for location attachments
}

// Coordinates is the position of a location attachment.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// DeliveryPayload confirms delivery of messages up to a watermark.
type DeliveryPayload struct {
	Watermark  int64
	MessageIDs []string
	Seq        int64
}

// ReadPayload confirms the user read messages up to a watermark.
type ReadPayload struct {
	Watermark int64
	Seq       int64
}

// PostbackPayload carries the developer-defined token of a pressed button.
type PostbackPayload struct {
	Payload  string
	Referral *ReferralPayload // present when the postback came via a referral link
}

// ReferralPayload carries data passed by a referral link.
type ReferralPayload struct {
	Ref    string
	Source string
	Kind   string
}

// OptinPayload carries the data ref of a "Send to Messenger" opt-in.
type OptinPayload struct {
	Ref string
}

// AccountLinkPayload reports an account being linked or unlinked.
type AccountLinkPayload struct {
	Status            string // "linked" or "unlinked"
	AuthorizationCode string // set only when Status is "linked"
}
