package validators

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

func testGlossary() *schema.Glossary {
	return &schema.Glossary{
		Terms: []schema.Term{
			{Name: "player", Synonyms: []string{"customer"}, Tables: []string{"players"}},
			{Name: "deposits", Tables: []string{"transactions"}, Columns: []string{"deposit_amount"}, Aggregation: "SUM"},
		},
	}
}

func semanticRequest(question string, level models.ValidationLevel) *models.ValidationRequest {
	return &models.ValidationRequest{
		RequestID:     uuid.New(),
		SQL:           "placeholder",
		OriginalQuery: question,
		Level:         level,
	}
}

func TestSemanticValidator_AlignedQuery(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT COUNT(*) FROM players WHERE active = 1")
	outcome := v.Validate(semanticRequest("How many players are active?", models.LevelStandard), analysis)

	require.NotNil(t, outcome.Semantic)
	assert.Equal(t, 1.0, outcome.Score)
	assert.Empty(t, outcome.Semantic.Inconsistencies)
	assert.Contains(t, outcome.Semantic.BusinessTermValidation.MatchedTerms, "player")
}

func TestSemanticValidator_MissingConcept(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	// Question names deposits but the query never touches transactions.
	analysis := sql.Analyze("SELECT SUM(balance) FROM players")
	outcome := v.Validate(semanticRequest("What are the total deposits per player?", models.LevelStandard), analysis)

	assert.Less(t, outcome.Score, 1.0)
	assert.Contains(t, outcome.Semantic.BusinessTermValidation.UnmatchedTerms, "deposits")

	found := false
	for _, inc := range outcome.Semantic.Inconsistencies {
		if inc.Kind == models.CategoryMissingConcept && inc.Term == "deposits" {
			found = true
		}
	}
	assert.True(t, found, "missing concept not reported")
}

func TestSemanticValidator_AggregationMismatch(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	// "How many" implies an aggregate; the query returns raw rows.
	analysis := sql.Analyze("SELECT id, name FROM players")
	outcome := v.Validate(semanticRequest("How many players do we have?", models.LevelStandard), analysis)

	found := false
	for _, inc := range outcome.Semantic.Inconsistencies {
		if inc.Kind == models.CategoryAggregationMismatch {
			found = true
		}
	}
	assert.True(t, found, "aggregation mismatch not reported")
	assert.Less(t, outcome.Score, 1.0)
}

func TestSemanticValidator_WrongAggregateForMetric(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	// deposits is defined as SUM; the query averages.
	analysis := sql.Analyze("SELECT AVG(deposit_amount) FROM transactions")
	outcome := v.Validate(semanticRequest("total deposits last month", models.LevelStandard), analysis)

	found := false
	for _, inc := range outcome.Semantic.Inconsistencies {
		if inc.Kind == models.CategoryAggregationMismatch {
			found = true
		}
	}
	assert.True(t, found, "wrong aggregate function not reported")
}

func TestSemanticValidator_SeverityEscalatesBelowThreshold(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT id FROM orders")
	outcome := v.Validate(semanticRequest("total deposits per player", models.LevelStrict), analysis)

	require.NotEmpty(t, outcome.Issues)
	for _, iss := range outcome.Issues {
		assert.Equal(t, models.SeverityError, iss.Severity)
	}
}

func TestSemanticValidator_NoGlossaryMatchIsNeutral(t *testing.T) {
	v := NewSemanticValidator(testGlossary(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT region, COUNT(*) FROM offices GROUP BY region")
	outcome := v.Validate(semanticRequest("count offices by region", models.LevelStandard), analysis)

	assert.Equal(t, 1.0, outcome.Semantic.BusinessTermValidation.Score)
	assert.Equal(t, 0.5, outcome.Semantic.ConfidenceScore)
}
