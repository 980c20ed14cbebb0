package models

import (
	"github.com/google/uuid"
)

// EnhancedValidationRequest is the wire-level request shape accepted by
// transports (MCP tools, offline harness).
type EnhancedValidationRequest struct {
	SQL                  string            `json:"sql"`
	OriginalQuery        string            `json:"original_query"`
	Context              map[string]string `json:"context,omitempty"`
	UserID               string            `json:"user_id,omitempty"`
	EnableSelfCorrection bool              `json:"enable_self_correction"`
	EnableDryRun         bool              `json:"enable_dry_run"`
	ValidationLevel      string            `json:"validation_level,omitempty"`
	SkipValidationTypes  []string          `json:"skip_validation_types,omitempty"`
}

// ToValidationRequest converts the wire shape into the canonical request,
// assigning a fresh request ID and normalizing the level.
func (r *EnhancedValidationRequest) ToValidationRequest() (*ValidationRequest, error) {
	level, err := ParseValidationLevel(r.ValidationLevel)
	if err != nil {
		return nil, err
	}

	var skip []ValidationType
	for _, s := range r.SkipValidationTypes {
		skip = append(skip, ValidationType(s))
	}

	req := &ValidationRequest{
		RequestID:            uuid.New(),
		SQL:                  r.SQL,
		OriginalQuery:        r.OriginalQuery,
		Context:              r.Context,
		UserID:               r.UserID,
		EnableSelfCorrection: r.EnableSelfCorrection,
		EnableDryRun:         r.EnableDryRun,
		Level:                level,
		SkipValidationTypes:  skip,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// EnhancedValidationResponse is the wire-level response envelope. User
// visible failures are always a structured success=false/message pair; no
// raw internal error text crosses this boundary.
type EnhancedValidationResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message,omitempty"`
	ValidationResult *ValidationResult `json:"validation_result,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// NewValidationResponse wraps a completed pipeline result.
func NewValidationResponse(result *ValidationResult) *EnhancedValidationResponse {
	msg := "validation passed"
	if !result.IsValid {
		msg = "validation failed"
		if result.IsSelfCorrected {
			msg = "validation failed after self-correction"
		}
	} else if result.IsSelfCorrected {
		msg = "validation passed after self-correction"
	}
	return &EnhancedValidationResponse{
		Success:          true,
		Message:          msg,
		ValidationResult: result,
		Warnings:         result.Warnings,
	}
}

// NewErrorResponse builds a structured failure envelope.
func NewErrorResponse(message string) *EnhancedValidationResponse {
	return &EnhancedValidationResponse{Success: false, Message: message}
}
