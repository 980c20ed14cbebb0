package apperrors

import "errors"

var (
	ErrEmptySQL            = errors.New("sql statement is empty")
	ErrEmptyQuestion       = errors.New("original query is empty")
	ErrUnknownLevel        = errors.New("unknown validation level")
	ErrUnknownStrategy     = errors.New("unknown correction strategy")
	ErrSnapshotUnavailable = errors.New("schema snapshot unavailable")
	ErrCorrectionDisabled  = errors.New("self-correction is not enabled for this request")
	ErrNotCorrectable      = errors.New("validation result cannot be self-corrected")
)
