package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	custom_err "github.com/customeros/vmail/api/errors"
	"github.com/customeros/vmail/internal/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// respondWithError writes {error, details}, with the status derived from err.
func respondWithError(c *gin.Context, span opentracing.Span, message string, err error) {
	status := custom_err.StatusFor(err)
	if status >= http.StatusInternalServerError {
		tracing.TraceErr(span, err)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func respondNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// pageParams reads limit and offset, capping limit at 100.
func pageParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return min(limit, maxPageSize), offset
}
