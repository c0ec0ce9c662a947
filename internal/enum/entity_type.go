package enum

type EntityType string

const (
	EMAIL            EntityType = "EMAIL"
	EMAIL_ATTACHMENT EntityType = "EMAIL_ATTACHMENT"
	BLOCKED_SENDER   EntityType = "BLOCKED_SENDER"
	MAILBOX          EntityType = "MAILBOX"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
