package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/customeros/vmail/interfaces"
	"github.com/customeros/vmail/internal/utils"
)

const KeyMailbox = "Mailbox"

// MailboxAuthMiddleware accepts "Authorization: Bearer <token>" issued by the mailbox API
// and stores the mailbox address in the gin and request contexts.
func MailboxAuthMiddleware(mailboxes interfaces.MailboxService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		address, err := mailboxes.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(KeyMailbox, address)
		c.Request = c.Request.WithContext(utils.SetMailboxInContext(c.Request.Context(), address))
		c.Next()
	}
}
