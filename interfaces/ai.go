package interfaces

import (
	"context"

	"github.com/customeros/vmail/internal/models"
)

type AIService interface {
	Enabled() bool
	Summarize(ctx context.Context, content string) (string, error)
	DraftReply(ctx context.Context, email *models.Email, instructions string) (string, error)
}
