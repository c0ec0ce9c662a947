package errors

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	vmailerrors "github.com/customeros/vmail/internal/errors"
)

func TestMultiErrors(t *testing.T) {
	errs := NewMultiErrors()
	assert.False(t, errs.HasErrors())

	errs.Add("email", "must contain @", errors.New("invalid entry"))
	assert.True(t, errs.HasErrors())
	assert.Equal(t, "email: must contain @", errs.Error())
}

func TestMultiErrors_KeepsInsertionOrder(t *testing.T) {
	errs := NewMultiErrors()
	errs.Add("to", "required", nil)
	errs.Add("from", "malformed", nil)
	errs.Add("to", "not a vmail domain", nil)
	errs.Add("subject", "too long", nil)

	want := "to: required | from: malformed | to: not a vmail domain | subject: too long"
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, errs.Error())
	}

	body, err := json.Marshal(errs)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"errors":[
		{"field":"to","message":"required"},
		{"field":"from","message":"malformed"},
		{"field":"to","message":"not a vmail domain"},
		{"field":"subject","message":"too long"}]}`, string(body))
}

func TestStatusFor(t *testing.T) {
	multi := NewMultiErrors()
	multi.Add("to", "required", nil)

	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{multi, http.StatusBadRequest},
		{vmailerrors.NewValidationError("from", "bad"), http.StatusBadRequest},
		{vmailerrors.ErrSenderBlocked, http.StatusForbidden},
		{errors.Wrap(vmailerrors.ErrEmailNotFound, "lookup"), http.StatusNotFound},
		{vmailerrors.ErrInvalidCredentials, http.StatusUnauthorized},
		{vmailerrors.ErrMailboxExpired, http.StatusGone},
		{vmailerrors.ErrMailboxExists, http.StatusConflict},
		{vmailerrors.ErrNoProviderConfigured, http.StatusUnprocessableEntity},
		{vmailerrors.ErrAIDisabled, http.StatusServiceUnavailable},
		{vmailerrors.NewNotificationError("outbound", errors.New("503")), http.StatusBadGateway},
		{vmailerrors.NewStorageError("create", errors.New("db")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}
