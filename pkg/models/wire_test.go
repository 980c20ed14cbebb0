package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/apperrors"
)

func TestToValidationRequest(t *testing.T) {
	wire := &EnhancedValidationRequest{
		SQL:                  "SELECT name FROM players WHERE brand_id = 1",
		OriginalQuery:        "list player names",
		UserID:               "alice",
		EnableSelfCorrection: true,
		ValidationLevel:      "comprehensive",
		SkipValidationTypes:  []string{"semantic"},
	}

	req, err := wire.ToValidationRequest()
	require.NoError(t, err)

	assert.NotZero(t, req.RequestID)
	assert.Equal(t, wire.SQL, req.SQL)
	assert.Equal(t, LevelComprehensive, req.Level)
	assert.True(t, req.EnableSelfCorrection)
	assert.Equal(t, []ValidationType{TypeSemantic}, req.SkipValidationTypes)

	// Each conversion gets a fresh request ID.
	again, err := wire.ToValidationRequest()
	require.NoError(t, err)
	assert.NotEqual(t, req.RequestID, again.RequestID)
}

func TestToValidationRequest_DefaultsLevel(t *testing.T) {
	wire := &EnhancedValidationRequest{
		SQL:           "SELECT 1",
		OriginalQuery: "one",
	}

	req, err := wire.ToValidationRequest()
	require.NoError(t, err)
	assert.Equal(t, LevelStandard, req.Level)
}

func TestToValidationRequest_Invalid(t *testing.T) {
	_, err := (&EnhancedValidationRequest{
		SQL:             "SELECT 1",
		OriginalQuery:   "one",
		ValidationLevel: "paranoid",
	}).ToValidationRequest()
	assert.True(t, errors.Is(err, apperrors.ErrUnknownLevel))

	_, err = (&EnhancedValidationRequest{
		OriginalQuery: "one",
	}).ToValidationRequest()
	assert.True(t, errors.Is(err, apperrors.ErrEmptySQL))
}

func TestNewValidationResponse(t *testing.T) {
	tests := []struct {
		name        string
		result      *ValidationResult
		wantMessage string
	}{
		{"passed", &ValidationResult{IsValid: true}, "validation passed"},
		{"failed", &ValidationResult{}, "validation failed"},
		{"corrected", &ValidationResult{IsValid: true, IsSelfCorrected: true}, "validation passed after self-correction"},
		{"correction exhausted", &ValidationResult{IsSelfCorrected: true}, "validation failed after self-correction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewValidationResponse(tt.result)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Same(t, tt.result, resp.ValidationResult)
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("something broke")
	assert.False(t, resp.Success)
	assert.Equal(t, "something broke", resp.Message)
	assert.Nil(t, resp.ValidationResult)
}
