package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/api/middleware"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const textPreviewChars = 200

type MailboxHandler struct {
	deps Dependencies
}

func NewMailboxHandler(deps Dependencies) *MailboxHandler {
	return &MailboxHandler{deps: deps}
}

func (h *MailboxHandler) Create(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.Create")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	session, err := h.deps.Mailboxes.Create(ctx)
	if err != nil {
		respondWithError(c, span, "Failed to create mailbox", err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *MailboxHandler) Claim(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.Claim")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var creds dto.MailboxCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	session, err := h.deps.Mailboxes.Claim(ctx, creds)
	if err != nil {
		respondWithError(c, span, "Failed to claim mailbox", err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *MailboxHandler) Login(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.Login")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var creds dto.MailboxCredentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	session, err := h.deps.Mailboxes.Login(ctx, creds)
	if err != nil {
		respondWithError(c, span, "Login failed", err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *MailboxHandler) ListEmails(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.ListEmails")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	limit, offset := pageParams(c)
	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))

	emails, total, err := h.deps.Emails.ListByRecipientPaged(ctx, mailboxAddress(c), dto.EmailListFilter{
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: unreadOnly,
	})
	if err != nil {
		respondWithError(c, span, "Failed to list emails", err)
		return
	}

	items := make([]dto.EmailListItem, 0, len(emails))
	for _, e := range emails {
		items = append(items, listItem(e))
	}
	c.JSON(http.StatusOK, gin.H{
		"emails": items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetEmail returns a message of the caller's mailbox and marks it read.
func (h *MailboxHandler) GetEmail(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.GetEmail")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	email, ok := h.ownedEmail(c, span)
	if !ok {
		return
	}

	if !email.IsRead {
		now := utils.Now()
		if err := h.deps.Emails.MarkAsRead(ctx, email.ID, now); err != nil {
			respondWithError(c, span, "Failed to mark email as read", err)
			return
		}
		email.IsRead = true
		email.ReadAt = &now
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

func (h *MailboxHandler) MarkRead(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.MarkRead")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	email, ok := h.ownedEmail(c, span)
	if !ok {
		return
	}
	if err := h.deps.Emails.MarkAsRead(ctx, email.ID, utils.Now()); err != nil {
		respondWithError(c, span, "Failed to mark email as read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *MailboxHandler) MarkAllRead(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.MarkAllRead")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	updated, err := h.deps.Emails.MarkAllAsRead(ctx, mailboxAddress(c), utils.Now())
	if err != nil {
		respondWithError(c, span, "Failed to mark emails as read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (h *MailboxHandler) Stats(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "MailboxHandler.Stats")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	stats, err := h.deps.Emails.CountByRecipient(ctx, mailboxAddress(c))
	if err != nil {
		respondWithError(c, span, "Failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ownedEmail loads :id and answers 404 unless it belongs to the authenticated mailbox.
func (h *MailboxHandler) ownedEmail(c *gin.Context, span opentracing.Span) (*models.Email, bool) {
	email, err := h.deps.Emails.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, span, "Failed to load email", err)
		return nil, false
	}
	if email == nil || email.MessageTo != mailboxAddress(c) {
		respondNotFound(c, "email")
		return nil, false
	}
	return email, true
}

func mailboxAddress(c *gin.Context) string {
	return c.GetString(middleware.KeyMailbox)
}

func listItem(e *models.Email) dto.EmailListItem {
	return dto.EmailListItem{
		ID:          e.ID,
		From:        e.MessageFrom,
		FromName:    e.From.Name,
		Subject:     e.Subject,
		TextPreview: utils.Truncate(utils.DerivePlainText(e.Text, e.HTML), textPreviewChars),
		IsRead:      e.IsRead,
		Priority:    e.Priority.String(),
		CreatedAt:   e.CreatedAt,
	}
}

type attachmentLink struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

func attachmentLinks(deps Dependencies, attachments []*models.EmailAttachment) []attachmentLink {
	links := make([]attachmentLink, 0, len(attachments))
	for _, a := range attachments {
		links = append(links, attachmentLink{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			URL:         deps.Attachments.PublicURL(a.EmailID, a.Filename),
		})
	}
	return links
}
