package dto

// WebhookPayload is POSTed to WEBHOOK_URL for every stored email.
type WebhookPayload struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text"`
	HTML        string              `json:"html,omitempty"`
	ReceivedAt  string              `json:"receivedAt"`
	Attachments []WebhookAttachment `json:"attachments"`
}

type WebhookAttachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}
