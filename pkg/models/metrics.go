package models

// ValidationTypeMetrics is the per-stage slice of the telemetry snapshot.
type ValidationTypeMetrics struct {
	Executions   int64   `json:"executions"`
	Failures     int64   `json:"failures"`
	AverageScore float64 `json:"average_score"`
}

// ValidationMetrics is the aggregate telemetry snapshot emitted to the
// external sink.
type ValidationMetrics struct {
	TotalValidations          int64                                    `json:"total_validations"`
	SuccessfulValidations     int64                                    `json:"successful_validations"`
	SelfCorrectionAttempts    int64                                    `json:"self_correction_attempts"`
	SuccessfulSelfCorrections int64                                    `json:"successful_self_corrections"`
	AverageValidationScore    float64                                  `json:"average_validation_score"`
	ValidationTypeMetrics     map[ValidationType]ValidationTypeMetrics `json:"validation_type_metrics"`
}
