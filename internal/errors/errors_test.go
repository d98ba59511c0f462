package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		code   ErrorCode
		status int
	}{
		{Validation("bad input"), CodeValidation, http.StatusBadRequest},
		{NotFound("submission", "sub-1"), CodeNotFound, http.StatusNotFound},
		{AlreadyVerified("sub-1"), CodeAlreadyVerified, http.StatusConflict},
		{InvalidTransition("batch b-1", "recycled", "pending"), CodeInvalidTransition, http.StatusConflict},
		{DuplicateBatch("b-1"), CodeDuplicateBatch, http.StatusConflict},
		{ConflictingReference("batch b-1", "0xa", "0xb"), CodeConflictingReference, http.StatusConflict},
		{SettlementUnavailable(nil), CodeSettlementUnavailable, http.StatusServiceUnavailable},
		{SettlementPending("0xa"), CodeSettlementPending, http.StatusAccepted},
		{UnsupportedEvent("TokensBurned"), CodeUnsupportedEvent, http.StatusBadRequest},
		{Forbidden("consumer", "verify submissions"), CodeForbidden, http.StatusForbidden},
		{RateLimited(20, "1s"), CodeRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.code, tc.err.Code)
			assert.Equal(t, tc.status, tc.err.HTTPStatus)
			assert.True(t, HasCode(tc.err, tc.code))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, SettlementUnavailable(nil).Retryable())
	assert.True(t, Internal("boom", nil).Retryable())
	assert.False(t, ConflictingReference("tx", "0xa", "0xb").Retryable())
	assert.False(t, AlreadyVerified("sub-1").Retryable())
}

func TestWrappedCauseSurvivesExtraction(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := SettlementUnavailable(cause)
	wrapped := fmt.Errorf("submit intent: %w", err)

	svcErr := GetServiceError(wrapped)
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeSettlementUnavailable, svcErr.Code)
	assert.ErrorIs(t, wrapped, err)
	assert.Contains(t, svcErr.Error(), "connection refused")
}

func TestSettlementPendingCarriesReference(t *testing.T) {
	err := SettlementPending("0xabc")
	require.NotNil(t, err.Details)
	assert.Equal(t, "0xabc", err.Details["external_ref"])

	// No reference known yet is a legal state too.
	assert.Nil(t, SettlementPending("").Details)
}
