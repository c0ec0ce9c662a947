package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/dto"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

// AutomationHandler serves API-key clients such as test suites polling for OTP mail.
type AutomationHandler struct {
	deps Dependencies
}

func NewAutomationHandler(deps Dependencies) *AutomationHandler {
	return &AutomationHandler{deps: deps}
}

func (h *AutomationHandler) Inbox(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AutomationHandler.Inbox")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	address := utils.NormalizeAddress(c.Param("address"))
	tracing.TagMailbox(span, address)

	emails, err := h.deps.Emails.ListByRecipient(ctx, address)
	if err != nil {
		respondWithError(c, span, "Failed to load inbox", err)
		return
	}
	items := make([]dto.EmailListItem, 0, len(emails))
	for _, e := range emails {
		items = append(items, listItem(e))
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "emails": items})
}

func (h *AutomationHandler) Message(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AutomationHandler.Message")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	email, err := h.deps.Emails.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, span, "Failed to load email", err)
		return
	}
	if email == nil {
		respondNotFound(c, "email")
		return
	}
	attachments, err := h.deps.AttachRepo.ListByEmail(ctx, email.ID)
	if err != nil {
		respondWithError(c, span, "Failed to load attachments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":       email,
		"attachments": attachmentLinks(h.deps, attachments),
	})
}

// Latest returns the newest email of an address together with the OTP found in it.
func (h *AutomationHandler) Latest(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AutomationHandler.Latest")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	address := utils.NormalizeAddress(c.Param("address"))
	tracing.TagMailbox(span, address)

	emails, _, err := h.deps.Emails.ListByRecipientPaged(ctx, address, dto.EmailListFilter{Limit: 1})
	if err != nil {
		respondWithError(c, span, "Failed to load inbox", err)
		return
	}
	if len(emails) == 0 {
		respondNotFound(c, "email")
		return
	}
	email := emails[0]
	c.JSON(http.StatusOK, gin.H{
		"email": email,
		"otp":   utils.ExtractOTP(email.Subject, utils.DerivePlainText(email.Text, email.HTML)),
	})
}

// Summarize returns the cached summary, asking the model only on the first call.
func (h *AutomationHandler) Summarize(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AutomationHandler.Summarize")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	email, err := h.deps.Emails.GetByID(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, span, "Failed to load email", err)
		return
	}
	if email == nil {
		respondNotFound(c, "email")
		return
	}
	if email.Summary != "" {
		c.JSON(http.StatusOK, gin.H{"summary": email.Summary, "cached": true})
		return
	}
	if h.deps.AI == nil || !h.deps.AI.Enabled() {
		respondWithError(c, span, "AI is not available", vmailerrors.ErrAIDisabled)
		return
	}

	summary, err := h.deps.AI.Summarize(ctx, utils.DerivePlainText(email.Text, email.HTML))
	if err != nil {
		respondWithError(c, span, "Failed to summarize email", err)
		return
	}
	if err = h.deps.Emails.UpdateSummary(ctx, email.ID, summary); err != nil {
		// returned uncached
		tracing.TraceErr(span, err)
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "cached": false})
}
