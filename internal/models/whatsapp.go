package models

// OutboundMessage is the subset of a Cloud API send-message body the router inspects.
// The router relays the original bytes, not this struct.
type OutboundMessage struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Template         *MessageTemplate `json:"template,omitempty"`
}

type MessageTemplate struct {
	Name string `json:"name"`
}

const MessageTypeTemplate = "template"

// SendMessageResponse mirrors the Cloud API response to a send-message call.
type SendMessageResponse struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []MessageContact  `json:"contacts"`
	Messages         []MessageAccepted `json:"messages"`
}

type MessageContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

type MessageAccepted struct {
	ID            string `json:"id"`
	MessageStatus string `json:"message_status"`
}

// WebhookInput is the payload WhatsApp posts to the webhook endpoint.
type WebhookInput struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Messages         []WebhookMessage `json:"messages"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookMessage struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *WebhookText `json:"text,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

// IsMessagesWebhook reports whether any change carries the messages field.
func (w WebhookInput) IsMessagesWebhook() bool {
	for _, entry := range w.Entry {
		for _, change := range entry.Changes {
			if change.Field == "messages" {
				return true
			}
		}
	}
	return false
}

// WebhookDelivery is one processed inbound message, stored to skip redeliveries.
type WebhookDelivery struct {
	MessageID        string `dynamodbav:"messageId"`
	BusinessNumberID string `dynamodbav:"businessNumberId"`
	From             string `dynamodbav:"from"`
	ProcessedAt      string `dynamodbav:"processedAt"` // RFC3339
	ExpiresAt        int64  `dynamodbav:"expiresAt"`   // epoch seconds, DynamoDB TTL
}
