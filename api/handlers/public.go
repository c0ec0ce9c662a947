package handlers

import (
	"html"
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/vmail/internal/models"
	"github.com/customeros/vmail/internal/tracing"
)

const viewCSP = "default-src 'none'; img-src * data:; style-src 'unsafe-inline' *; font-src *"

type PublicHandler struct {
	deps Dependencies
}

func NewPublicHandler(deps Dependencies) *PublicHandler {
	return &PublicHandler{deps: deps}
}

// Attachment streams an attachment blob; the path is the one PublicURL hands out.
func (h *PublicHandler) Attachment(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "PublicHandler.Attachment")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	emailID, filename := c.Param("emailId"), c.Param("filename")
	tracing.TagEmail(span, emailID)

	_, blob, err := h.deps.Attachments.Open(ctx, emailID, filename)
	if err != nil {
		respondWithError(c, span, "Failed to load attachment", err)
		return
	}
	if blob == nil {
		respondNotFound(c, "attachment")
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, blob.ContentType, blob.Body)
}

// View renders an email as a standalone page for the "Read Online" button.
func (h *PublicHandler) View(c *gin.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "PublicHandler.View")
	defer span.Finish()
	tracing.SetDefaultRestSpanTags(ctx, span)

	email, err := h.deps.Emails.GetByID(ctx, c.Param("id"))
	if err != nil {
		tracing.TraceErr(span, err)
		c.String(http.StatusInternalServerError, "Failed to load email")
		return
	}
	if email == nil {
		c.String(http.StatusNotFound, "Email not found")
		return
	}

	page, err := renderView(email)
	if err != nil {
		tracing.TraceErr(span, err)
		c.String(http.StatusInternalServerError, "Failed to render email")
		return
	}

	c.Header("Content-Security-Policy", viewCSP)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// renderView wraps the body in a full document, titles it with the subject and drops scripts.
// Text-only mail is shown preformatted.
func renderView(email *models.Email) (string, error) {
	body := email.HTML
	if strings.TrimSpace(body) == "" {
		body = `<pre style="white-space:pre-wrap;font-family:inherit">` + html.EscapeString(email.Text) + `</pre>`
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, iframe, object, embed").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		var handlers []string
		for _, attr := range s.Get(0).Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				handlers = append(handlers, attr.Key)
			}
		}
		for _, key := range handlers {
			s.RemoveAttr(key)
		}
	})

	head := doc.Find("head")
	if head.Find("meta[charset]").Length() == 0 {
		head.PrependHtml(`<meta charset="utf-8">`)
	}
	if head.Find("title").Length() == 0 {
		head.AppendHtml("<title>" + html.EscapeString(email.Subject) + "</title>")
	}

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return "<!DOCTYPE html>\n" + out, nil
}

// Domains lists the domains vmail receives for and can send from.
func (h *PublicHandler) Domains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"domains": h.deps.Outbound.Domains()})
}
