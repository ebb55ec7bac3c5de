package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionFailure_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransactionFailure("commit", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "commit", err.Details["operation"])
	assert.Equal(t, "TRANSACTION_FAILURE: transaction commit failed (caused by: connection refused)", err.Error())
}

func TestCodeHelpers_FindWrappedError(t *testing.T) {
	err := fmt.Errorf("save person: %w", NewNotFound("person", "42"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestCodeHelpers(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{NewInvalidState("closed"), IsInvalidState},
		{NewMissingTransaction(), IsMissingTransaction},
		{NewTransactionFailure("begin", nil), IsTransactionFailure},
		{NewConfiguration("unset"), IsConfiguration},
		{NewValidation("bad"), IsValidation},
		{NewNotFound("row", 1), IsNotFound},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), tt.err.Error())
	}
	assert.False(t, IsNotFound(nil))
}

func TestWithDetail(t *testing.T) {
	err := NewInvalidState("closed").WithDetail("tx_id", "abc")
	assert.Equal(t, map[string]any{"tx_id": "abc"}, err.Details)
}
