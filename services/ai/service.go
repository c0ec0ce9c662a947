package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/interfaces"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const (
	maxInputChars     = 15000
	summaryMaxTokens  = 2000
	replyMaxTokens    = 2500
	defaultReplyGuide = "Reply professionally and concisely."

	summarySystemPrompt = "You are a helpful assistant. Output concise summary."
	replySystemPrompt   = "You are a professional email assistant. Draft a complete, polite, and context-aware reply based on the user's instructions. Do not cut off the response. Provide a full email body."
)

type aiService struct {
	cfg    *config.OpenAIConfig
	client *openai.Client
}

func NewAIService(cfg *config.OpenAIConfig) interfaces.AIService {
	s := &aiService{cfg: cfg}
	if cfg.APIKey == "" {
		return s
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		// accept the full completions URL as well as the API root
		clientConfig.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/chat/completions")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	s.client = openai.NewClientWithConfig(clientConfig)
	return s
}

func (s *aiService) Enabled() bool {
	return s.client != nil
}

func (s *aiService) Summarize(ctx context.Context, content string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.Summarize")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	prompt := fmt.Sprintf("Summarize the key points of this email in 1-2 sentences in %s. Be concise but capture the main essence.",
		utils.FirstNonEmpty(s.cfg.SummaryTargetLang, "English"))

	summary, err := s.complete(ctx, summarySystemPrompt, prompt, content, summaryMaxTokens)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return summary, nil
}

func (s *aiService) DraftReply(ctx context.Context, email *models.Email, instructions string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.DraftReply")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEmail(span, email.ID)

	prompt := fmt.Sprintf("Draft a reply to the email below.\nInstructions: %s\nOriginal Sender: %s\nContent:",
		utils.FirstNonEmpty(instructions, defaultReplyGuide), email.MessageFrom)
	content := utils.FirstNonEmpty(email.Text, email.HTML, "No content")

	reply, err := s.complete(ctx, replySystemPrompt, prompt, content, replyMaxTokens)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return reply, nil
}

func (s *aiService) complete(ctx context.Context, systemPrompt, prompt, content string, maxTokens int) (string, error) {
	if !s.Enabled() {
		return "", vmailerrors.ErrAIDisabled
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt + "\n\nContent:\n" + utils.Truncate(content, maxInputChars)},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", vmailerrors.NewNotificationError("ai", errors.Wrap(err, "chat completion"))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", vmailerrors.NewNotificationError("ai", errors.New("empty completion"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
