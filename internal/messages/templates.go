package messages

// Button is an element of a button or generic template.
type Button interface {
	ButtonPayload() map[string]any
}

// URLButton opens a web page when pressed.
type URLButton struct {
	Title string
	URL   string
}

func (b URLButton) ButtonPayload() map[string]any {
	return map[string]any{
		"type":  "web_url",
		"title": b.Title,
		"url":   b.URL,
	}
}

// PostbackButton sends its payload back to the webhook as a postback
// event when pressed.
type PostbackButton struct {
	Title   string
	Payload string
}

func (b PostbackButton) ButtonPayload() map[string]any {
	return map[string]any{
		"type":    "postback",
		"title":   b.Title,
		"payload": b.Payload,
	}
}

// ButtonTemplate is a text message with up to three buttons attached.
type ButtonTemplate struct {
	Text    string
	Buttons []Button
}

func (t ButtonTemplate) AttachmentPayload() map[string]any {
	return map[string]any{
		"type": "template",
		"payload": map[string]any{
			"template_type": "button",
			"text":          t.Text,
			"buttons":       buttonPayloads(t.Buttons),
		},
	}
}

// GenericTemplate is a horizontally scrollable list of cards.
type GenericTemplate struct {
	Elements []Element
}

func (t GenericTemplate) AttachmentPayload() map[string]any {
	elements := make([]map[string]any, 0, len(t.Elements))
	for _, el := range t.Elements {
		elements = append(elements, el.payload())
	}
	return map[string]any{
		"type": "template",
		"payload": map[string]any{
			"template_type": "generic",
			"elements":      elements,
		},
	}
}

// Element is a single card in a generic template.
type Element struct {
	Title         string
	Subtitle      string
	ImageURL      string
	DefaultAction *DefaultAction
	Buttons       []Button
}

func (el Element) payload() map[string]any {
	out := map[string]any{"title": el.Title}
	if el.Subtitle != "" {
		out["subtitle"] = el.Subtitle
	}
	if el.ImageURL != "" {
		out["image_url"] = el.ImageURL
	}
	if el.DefaultAction != nil {
		out["default_action"] = map[string]any{
			"type": "web_url",
			"url":  el.DefaultAction.URL,
		}
	}
	if len(el.Buttons) > 0 {
		out["buttons"] = buttonPayloads(el.Buttons)
	}
	return out
}

// DefaultAction opens a URL when the card itself is tapped.
type DefaultAction struct {
	URL string
}

func buttonPayloads(buttons []Button) []map[string]any {
	out := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.ButtonPayload())
	}
	return out
}
