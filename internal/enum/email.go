package enum

type EmailPriority string

const (
	EmailPriorityHigh   EmailPriority = "high"
	EmailPriorityNormal EmailPriority = "normal"
	EmailPriorityLow    EmailPriority = "low"
)

func (p EmailPriority) String() string {
	return string(p)
}

// ProviderKind selects how an outbound route delivers mail.
type ProviderKind string

const (
	ProviderKindHTTP     ProviderKind = "http"
	ProviderKindSendgrid ProviderKind = "sendgrid"
)

func (k ProviderKind) String() string {
	return string(k)
}

type IngestionOutcome string

const (
	IngestionStored   IngestionOutcome = "stored"
	IngestionRejected IngestionOutcome = "rejected"
	IngestionDropped  IngestionOutcome = "dropped"
	IngestionFailed   IngestionOutcome = "failed"
)

func (o IngestionOutcome) String() string {
	return string(o)
}
