package controller

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/clickreward-backend/internal/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{appErrors.NewCampaignNotFound(1), http.StatusNotFound},
		{fmt.Errorf("load: %w", appErrors.NewNotFound("deeplink", "abc")), http.StatusNotFound},
		{appErrors.NewValidation("title", "is required"), http.StatusBadRequest},
		{fmt.Errorf("%w: draft -> paused", appErrors.ErrInvalidTransition), http.StatusConflict},
		{appErrors.ErrCampaignNotActive, http.StatusConflict},
		{appErrors.ErrAlreadyCheckedIn, http.StatusConflict},
		{appErrors.ErrBonusAlreadyClaimed, http.StatusConflict},
		{appErrors.ErrInsufficientBalance, http.StatusPaymentRequired},
		{errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeError(w, r, nil, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	var body struct {
		UserID string `json:"user_id" validate:"required,uuid"`
		Action string `json:"action" validate:"oneof=pause alert"`
	}
	body.Action = "delete"

	err := validateStruct(&body)
	var v *appErrors.ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "is required", v.Fields["user_id"])
	assert.Equal(t, "must be one of: pause alert", v.Fields["action"])
}

func TestQueryTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?from=2026-03-01&to=2026-03-05T12:00:00Z&bad=yesterday", nil)

	from, err := queryTime(r, "from")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T00:00:00Z", from.Format("2006-01-02T15:04:05Z07:00"))

	to, err := queryTime(r, "to")
	require.NoError(t, err)
	assert.Equal(t, 12, to.Hour())

	missing, err := queryTime(r, "until")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = queryTime(r, "bad")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
