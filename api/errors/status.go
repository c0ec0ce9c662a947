package errors

import (
	stderrors "errors"
	"net/http"

	vmailerrors "github.com/customeros/vmail/internal/errors"
)

// StatusFor maps the service error taxonomy onto an HTTP status.
func StatusFor(err error) int {
	var multi *MultiErrors
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.As(err, &multi), vmailerrors.IsValidationError(err):
		return http.StatusBadRequest
	case vmailerrors.IsRejection(err):
		return http.StatusForbidden
	case stderrors.Is(err, vmailerrors.ErrEmailNotFound), stderrors.Is(err, vmailerrors.ErrAttachmentNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, vmailerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, vmailerrors.ErrMailboxExpired):
		return http.StatusGone
	case stderrors.Is(err, vmailerrors.ErrMailboxExists):
		return http.StatusConflict
	case stderrors.Is(err, vmailerrors.ErrNoProviderConfigured):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, vmailerrors.ErrAIDisabled):
		return http.StatusServiceUnavailable
	default:
		var notification *vmailerrors.NotificationError
		if stderrors.As(err, &notification) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}
