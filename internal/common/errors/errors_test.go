package errors

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeMissingCustomerID, "INPUT"},
		{ErrCodeRateLimited, "INPUT"},
		{ErrCodeIntentResolutionFailed, "UPSTREAM_RESOLUTION"},
		{ErrCodeTimeRangeFailed, "UPSTREAM_RESOLUTION"},
		{ErrCodeScreeningFailed, "UPSTREAM_RESOLUTION"},
		{ErrCodeProviderFetchFailed, "PARTIAL_DATA"},
		{ErrCodeNormalizationFailed, "PARTIAL_DATA"},
		{ErrCodeDraftingTimeout, "DRAFTING"},
		{ErrCodeSessionConflict, "STORAGE"},
		{ErrCodeInternal, "FATAL"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCategory(tt.code))
		})
	}
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	wrapped := fmt.Errorf("load session: %w", NewSessionStoreFailedError("get", fmt.Errorf("dial tcp")))
	std := AsStandardError(wrapped)
	require.NotNil(t, std)
	assert.Equal(t, ErrCodeSessionStoreFailed, std.Code)
	assert.True(t, std.Retryable)

	plain := AsStandardError(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestWithMetadata_DoesNotMutateOriginal(t *testing.T) {
	base := NewProviderFetchFailedError("LOANS", fmt.Errorf("503"))
	tagged := base.WithMetadata("correlationId", "c-1")

	assert.Empty(t, base.Metadata)
	assert.Equal(t, "c-1", tagged.Metadata["correlationId"])
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewMissingCustomerIDError().WithMetadata("jobKey", int64(7))
	bpmn := ConvertToBPMNError(stdErr)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "MISSING_CUSTOMER_ID", vars["errorCode"])
	assert.Equal(t, "INPUT", vars["errorCategory"])
	assert.Equal(t, int64(7), vars["jobKey"])
	assert.Equal(t, false, vars["retryable"])

	_, err := json.Marshal(vars)
	assert.NoError(t, err)
}
