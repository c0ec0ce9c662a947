package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	custom_err "github.com/customeros/vmail/api/errors"
	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	"github.com/customeros/vmail/internal/cron"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
)

const (
	statsLimit        = 20
	defaultBlockNote  = "Blocked via admin API"
	exportFilePattern = "vmail-export-2006-01-02.json"
)

type AdminHandler struct {
	cfg  *config.Config
	log  logger.Logger
	deps Dependencies
}

func NewAdminHandler(cfg *config.Config, log logger.Logger, deps Dependencies) *AdminHandler {
	return &AdminHandler{cfg: cfg, log: log, deps: deps}
}

// Cleanup enforces the retention cap now, serialized with the cron job.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.Cleanup")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	unlock := cron.LockRetention()
	defer unlock()

	result, err := h.deps.Janitor.Run(ctx, h.cfg.RetentionConfig.MaxEmails)
	if err != nil {
		respondWithError(c, span, "Cleanup failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ListEmails(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.ListEmails")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	limit, offset := pageParams(c)
	emails, total, err := h.deps.Emails.Search(ctx, c.Query("search"), limit, offset)
	if err != nil {
		respondWithError(c, span, "Failed to list emails", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"emails": emails,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.Stats")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	senders, err := h.deps.Emails.SenderStats(ctx, statsLimit)
	if err != nil {
		respondWithError(c, span, "Failed to load sender stats", err)
		return
	}
	receivers, err := h.deps.Emails.ReceiverStats(ctx, statsLimit)
	if err != nil {
		respondWithError(c, span, "Failed to load receiver stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"topSenders":   senders,
		"topReceivers": receivers,
	})
}

// Export downloads every email's headline fields as a JSON file.
func (h *AdminHandler) Export(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.Export")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	emails, err := h.deps.Emails.ListForExport(ctx)
	if err != nil {
		respondWithError(c, span, "Export failed", err)
		return
	}

	exported := make([]dto.ExportedEmail, 0, len(emails))
	for _, e := range emails {
		exported = append(exported, dto.ExportedEmail{
			ID:        e.ID,
			From:      e.MessageFrom,
			To:        e.MessageTo,
			Subject:   e.Subject,
			CreatedAt: e.CreatedAt,
			IsRead:    e.IsRead,
		})
	}

	filename := utils.Now().Format(exportFilePattern)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, exported)
}

func (h *AdminHandler) ListBlocklist(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.ListBlocklist")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	entries, err := h.deps.Blocklist.List(ctx)
	if err != nil {
		respondWithError(c, span, "Failed to load blocklist", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *AdminHandler) AddBlocklist(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.AddBlocklist")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var request dto.BlocklistRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if !strings.Contains(request.Email, "@") {
		errs := custom_err.NewMultiErrors()
		errs.Add("email", "provide an address, @domain or *@domain", errors.New("entry has no @"))
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	if err := h.deps.Blocklist.Add(ctx, request.Email, utils.FirstNonEmpty(request.Reason, defaultBlockNote)); err != nil {
		respondWithError(c, span, "Failed to block sender", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "email": utils.NormalizeAddress(request.Email)})
}

// RemoveBlocklist takes the entry from ?email= or from a JSON body.
func (h *AdminHandler) RemoveBlocklist(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.RemoveBlocklist")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	entry := c.Query("email")
	if entry == "" {
		var request dto.BlocklistRequest
		if err := c.ShouldBindJSON(&request); err == nil {
			entry = request.Email
		}
	}
	if strings.TrimSpace(entry) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}

	if err := h.deps.Blocklist.Remove(ctx, entry); err != nil {
		respondWithError(c, span, "Failed to unblock sender", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) DeleteEmails(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.DeleteEmails")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var request dto.DeleteEmailsRequest
	if err := c.ShouldBindJSON(&request); err != nil || len(request.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a non-empty list"})
		return
	}
	ids := utils.UniqueStrings(request.IDs)

	if err := h.deps.Deleter.DeleteEmails(ctx, ids); err != nil {
		respondWithError(c, span, "Failed to delete emails", err)
		return
	}
	h.log.Infof("Admin deleted %d emails", len(ids))
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": len(ids)})
}

func (h *AdminHandler) DeleteEmail(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.DeleteEmail")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	id := c.Param("id")
	email, err := h.deps.Emails.GetByID(ctx, id)
	if err != nil {
		respondWithError(c, span, "Failed to load email", err)
		return
	}
	if email == nil {
		respondNotFound(c, "email")
		return
	}

	if err = h.deps.Deleter.DeleteEmails(ctx, []string{id}); err != nil {
		respondWithError(c, span, "Failed to delete email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) Send(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.Send")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var request dto.SendEmailRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	if err := h.deps.Outbound.Send(ctx, request); err != nil {
		respondWithError(c, span, "Failed to send email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) AIReply(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "AdminHandler.AIReply")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	var request dto.AIReplyRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.EmailID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emailId is required"})
		return
	}
	if h.deps.AI == nil || !h.deps.AI.Enabled() {
		respondWithError(c, span, "AI is not available", vmailerrors.ErrAIDisabled)
		return
	}

	email, err := h.deps.Emails.GetByID(ctx, request.EmailID)
	if err != nil {
		respondWithError(c, span, "Failed to load email", err)
		return
	}
	if email == nil {
		respondNotFound(c, "email")
		return
	}

	reply, err := h.deps.AI.DraftReply(ctx, email, request.Instructions)
	if err != nil {
		respondWithError(c, span, "Failed to draft reply", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
