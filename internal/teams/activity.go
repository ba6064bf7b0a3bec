// Package teams integrates with the Microsoft Bot Framework connector:
// activity parsing, reply delivery, and user token retrieval.
package teams

// Activity is one Bot Framework activity.
type Activity struct {
	Type         string           `json:"type"`
	ID           string           `json:"id"`
	Timestamp    string           `json:"timestamp,omitempty"`
	ServiceURL   string           `json:"serviceUrl"`
	ChannelID    string           `json:"channelId"`
	From         ChannelAccount   `json:"from"`
	Conversation Conversation     `json:"conversation"`
	Recipient    ChannelAccount   `json:"recipient"`
	Text         string           `json:"text,omitempty"`
	TextFormat   string           `json:"textFormat,omitempty"`
	Attachments  []Attachment     `json:"attachments,omitempty"`
	MembersAdded []ChannelAccount `json:"membersAdded,omitempty"`
	ReplyToID    string           `json:"replyToId,omitempty"`
}

// Activity types the bot reacts to.
const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
)

// ChannelAccount is a Teams user or bot.
type ChannelAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

// Conversation identifies the Teams conversation an activity belongs to.
type Conversation struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

// Attachment is one message attachment.
type Attachment struct {
	ContentType string      `json:"contentType"`
	ContentURL  string      `json:"contentUrl,omitempty"`
	Content     interface{} `json:"content,omitempty"`
	Name        string      `json:"name,omitempty"`
}

// AdaptiveCard is a Microsoft Adaptive Card.
type AdaptiveCard struct {
	Type    string            `json:"type"`
	Version string            `json:"version"`
	Body    []AdaptiveElement `json:"body"`
	Actions []AdaptiveAction  `json:"actions,omitempty"`
}

// AdaptiveElement is an element in an Adaptive Card body.
type AdaptiveElement struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	URL    string `json:"url,omitempty"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

// AdaptiveAction is an action button on an Adaptive Card.
type AdaptiveAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// adaptiveCardContentType is the attachment content type for Adaptive Cards.
const adaptiveCardContentType = "application/vnd.microsoft.card.adaptive"

// ImageCard builds an Adaptive Card that renders one hosted image.
func ImageCard(title, imageURL string) *AdaptiveCard {
	body := []AdaptiveElement{}
	if title != "" {
		body = append(body, AdaptiveElement{Type: "TextBlock", Text: title, Weight: "bolder", Wrap: true})
	}
	body = append(body, AdaptiveElement{Type: "Image", URL: imageURL, Size: "auto"})
	return &AdaptiveCard{
		Type:    "AdaptiveCard",
		Version: "1.4",
		Body:    body,
	}
}
