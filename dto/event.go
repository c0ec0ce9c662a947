package dto

import "github.com/customeros/vmail/internal/enum"

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string          `json:"id"`
	EntityId   string          `json:"entityId"`
	EntityType enum.EntityType `json:"entityType"`
	EventType  string          `json:"eventType"`
	Data       interface{}     `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	Timestamp   string `json:"timestamp"`
}

const EventTypeEmailReceived = "EmailReceived"

// EmailReceivedEvent is published once an email has been stored.
type EmailReceivedEvent struct {
	EmailId     string   `json:"emailId"`
	MessageFrom string   `json:"messageFrom"`
	MessageTo   string   `json:"messageTo"`
	Subject     string   `json:"subject"`
	Attachments []string `json:"attachments"`
	OTP         string   `json:"otp,omitempty"`
}
