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

func testPolicy() *schema.AccessPolicy {
	return &schema.AccessPolicy{
		DefaultRole: "analyst",
		Roles: map[string]schema.RolePolicy{
			"analyst": {
				DeniedTables:  []string{"payroll"},
				MaskedColumns: []string{"players.email"},
			},
			"admin": {},
		},
		Users: map[string]string{"alice": "admin"},
	}
}

func businessRequest(userID string) *models.ValidationRequest {
	return &models.ValidationRequest{
		RequestID:     uuid.New(),
		SQL:           "placeholder",
		OriginalQuery: "test question",
		UserID:        userID,
		Level:         models.LevelComprehensive,
	}
}

func TestBusinessLogic_CleanQuery(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT name FROM players WHERE brand_id = 1")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	require.NotNil(t, outcome.BusinessLogic)
	assert.Equal(t, 1.0, outcome.Score)
	assert.Empty(t, outcome.BusinessLogic.RuleViolations)
}

func TestBusinessLogic_DeniedTable(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT salary FROM payroll")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.Contains(t, outcome.BusinessLogic.Access.DeniedTables, "payroll")
	assert.True(t, outcome.HasCritical())
	assert.Equal(t, 0.0, outcome.BusinessLogic.Access.Score)
}

func TestBusinessLogic_AdminBypassesDeny(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT salary FROM payroll")
	outcome := v.Validate(businessRequest("alice"), analysis, testSnapshot())

	assert.Empty(t, outcome.BusinessLogic.Access.DeniedTables)
	assert.False(t, outcome.HasCritical())
}

func TestBusinessLogic_MaskedColumnExposure(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT p.email FROM players p WHERE p.brand_id = 1")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.NotEmpty(t, outcome.BusinessLogic.Sensitivity.ExposedColumns)
	found := false
	for _, iss := range outcome.Issues {
		if iss.Category == models.CategorySensitiveExposure {
			found = true
			assert.Equal(t, models.SeverityError, iss.Severity)
		}
	}
	assert.True(t, found, "masked column exposure not flagged")
}

func TestBusinessLogic_SensitiveColumnViaSelectStar(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT * FROM players WHERE brand_id = 1")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	// email is marked sensitive in the snapshot.
	assert.Contains(t, outcome.BusinessLogic.Sensitivity.ExposedColumns, "players.email")
}

func TestBusinessLogic_FilteringOnSensitiveIsTolerated(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT id FROM players WHERE email = 'x@y.com' AND brand_id = 1")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.Empty(t, outcome.BusinessLogic.Sensitivity.ExposedColumns)
}

func TestBusinessLogic_UngroupedColumn(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT name, COUNT(*) FROM players GROUP BY balance")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.NotEmpty(t, outcome.BusinessLogic.Aggregation.Problems)
}

func TestBusinessLogic_GroupedColumnIsFine(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT name, COUNT(*) FROM players GROUP BY name")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.Empty(t, outcome.BusinessLogic.Aggregation.Problems)
}

func TestBusinessLogic_AggregateInWhere(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT id FROM orders WHERE SUM(total) > 100")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	assert.NotEmpty(t, outcome.BusinessLogic.Aggregation.Problems)
}

func TestBusinessLogic_WeightedScore(t *testing.T) {
	v := NewBusinessLogicValidator(testPolicy(), testValidationConfig(), zap.NewNop())

	analysis := sql.Analyze("SELECT p.email FROM players p WHERE p.brand_id = 1")
	outcome := v.Validate(businessRequest("bob"), analysis, testSnapshot())

	b := outcome.BusinessLogic
	want := b.Access.Score*0.40 + b.Sensitivity.Score*0.40 + b.Aggregation.Score*0.20
	assert.InDelta(t, want, b.BusinessLogicScore, 0.0001)
}
