package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	custom_err "github.com/customeros/vmail/api/errors"
	"github.com/customeros/vmail/config"
	vmailerrors "github.com/customeros/vmail/internal/errors"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/internal/utils"
	"github.com/customeros/vmail/services/inbound"
)

const (
	AppSourceHTTP = "http"

	HeaderEnvelopeFrom = "X-Envelope-From"
	HeaderEnvelopeTo   = "X-Envelope-To"
)

type InboundHandler struct {
	log      logger.Logger
	deps     Dependencies
	maxBytes int64
}

func NewInboundHandler(cfg *config.Config, log logger.Logger, deps Dependencies) *InboundHandler {
	return &InboundHandler{
		log:      log,
		deps:     deps,
		maxBytes: cfg.SMTPConfig.MaxMessageBytes,
	}
}

// Receive takes a raw RFC 5322 message relayed over HTTP, the envelope in headers.
func (h *InboundHandler) Receive(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "InboundHandler.Receive")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	from := strings.TrimSpace(c.GetHeader(HeaderEnvelopeFrom))
	to := strings.TrimSpace(c.GetHeader(HeaderEnvelopeTo))

	errs := custom_err.NewMultiErrors()
	if to == "" {
		errs.Add("envelopeTo", "the "+HeaderEnvelopeTo+" header is required", errors.New("missing recipient"))
	} else if !utils.IsValidAddress(to) {
		errs.Add("envelopeTo", "the recipient is not a valid address", errors.New("invalid recipient"))
	}
	if errs.HasErrors() {
		c.JSON(http.StatusBadRequest, errs)
		return
	}

	body := c.Request.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBytes)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	msg := inbound.NewMessage(from, to, raw, h.deps.Forwarder)
	email, err := h.deps.Pipeline.Process(utils.SetAppSourceInContext(ctx, AppSourceHTTP), msg)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "stored", "id": email.ID})
	case vmailerrors.IsRejection(err) || msg.RejectReason() != "":
		c.JSON(http.StatusForbidden, gin.H{"status": "rejected", "reason": utils.FirstNonEmpty(msg.RejectReason(), vmailerrors.ErrSenderBlocked.Reason)})
	case vmailerrors.IsParseError(err):
		c.JSON(http.StatusAccepted, gin.H{"status": "dropped"})
	case vmailerrors.IsValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "invalid", "error": err.Error()})
	default:
		tracing.TraceErr(span, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "failed", "error": err.Error()})
	}
}
