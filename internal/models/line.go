package models

// LINE Messaging API wire types. Only the fields the bot reads are mapped;
// unknown fields are ignored on decode.

// Event types we act on
const (
	LineEventTypeMessage = "message"

	LineMessageText  = "text"
	LineMessageImage = "image"
)

// LineWebhookRequest is the body of an inbound webhook POST
type LineWebhookRequest struct {
	Destination string      `json:"destination"`
	Events      []LineEvent `json:"events"`
}

// LineEvent is one entry in a webhook batch
type LineEvent struct {
	Type       string            `json:"type"`
	Timestamp  int64             `json:"timestamp"`
	ReplyToken string            `json:"replyToken"`
	Source     LineEventSource   `json:"source"`
	Message    *LineEventMessage `json:"message,omitempty"`
}

// LineEventSource identifies who sent the event
type LineEventSource struct {
	Type    string `json:"type"` // user, group, room
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
}

// LineEventMessage is the message payload of a message event
type LineEventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ReplyMessage is one outbound message in a reply call.
// Type is "text" or "image"; image messages carry content and preview URLs.
type ReplyMessage struct {
	Type               string      `json:"type"`
	Text               string      `json:"text,omitempty"`
	OriginalContentURL string      `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string      `json:"previewImageUrl,omitempty"`
	QuickReply         *QuickReply `json:"quickReply,omitempty"`
}

// QuickReply attaches suggestion buttons below a message
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// QuickReplyItem is a single suggestion button
type QuickReplyItem struct {
	Type   string           `json:"type"` // always "action"
	Action QuickReplyAction `json:"action"`
}

// QuickReplyAction is the action taken when a button is tapped
type QuickReplyAction struct {
	Type  string `json:"type"` // "message"
	Label string `json:"label"`
	Text  string `json:"text"`
}

// TextReply builds a plain text reply message
func TextReply(text string) ReplyMessage {
	return ReplyMessage{Type: "text", Text: text}
}

// ImageReply builds an image reply message. LINE requires both the full
// content URL and a preview URL; we serve the same asset for both.
func ImageReply(url string) ReplyMessage {
	return ReplyMessage{
		Type:               "image",
		OriginalContentURL: url,
		PreviewImageURL:    url,
	}
}

// TextReplyWithChoices builds a text reply carrying quick-reply buttons.
// Each choice is label + the literal text sent when the button is tapped.
func TextReplyWithChoices(text string, choices map[string]string, order []string) ReplyMessage {
	items := make([]QuickReplyItem, 0, len(order))
	for _, label := range order {
		items = append(items, QuickReplyItem{
			Type: "action",
			Action: QuickReplyAction{
				Type:  "message",
				Label: label,
				Text:  choices[label],
			},
		})
	}
	msg := TextReply(text)
	msg.QuickReply = &QuickReply{Items: items}
	return msg
}
