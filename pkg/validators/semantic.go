package validators

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/config"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/schema"
	"github.com/sqlguard-ai/sqlguard-engine/pkg/sql"
)

// SemanticValidator judges whether the SQL answers the question it was
// generated for, using the business glossary as the bridge between the two.
type SemanticValidator interface {
	Validate(req *models.ValidationRequest, analysis *sql.Analysis) models.StageOutcome
}

type semanticValidator struct {
	glossary *schema.Glossary
	cfg      *config.ValidationConfig
	logger   *zap.Logger
}

// NewSemanticValidator creates the semantic stage validator.
func NewSemanticValidator(glossary *schema.Glossary, cfg *config.ValidationConfig, logger *zap.Logger) SemanticValidator {
	return &semanticValidator{
		glossary: glossary,
		cfg:      cfg,
		logger:   logger.Named("semantic-validator"),
	}
}

var _ SemanticValidator = (*semanticValidator)(nil)

// aggregationCues are question phrasings that imply an aggregate answer.
var aggregationCues = []string{
	"how many", "count of", "number of", "total", "sum of",
	"average", "avg", "minimum", "maximum", "per ",
}

func (v *semanticValidator) Validate(req *models.ValidationRequest, analysis *sql.Analysis) models.StageOutcome {
	outcome := models.StageOutcome{Type: models.TypeSemantic, Executed: true}
	result := &models.SemanticValidationResult{}
	outcome.Semantic = result

	tables := make(map[string]bool)
	for _, name := range analysis.TableNames() {
		tables[strings.ToLower(name)] = true
	}
	columns := make(map[string]bool)
	for _, refs := range [][]sql.ColumnRef{analysis.SelectColumns, analysis.WhereColumns, analysis.GroupByColumns} {
		for _, ref := range refs {
			columns[strings.ToLower(ref.Name)] = true
		}
	}

	matched := v.glossary.MatchTerms(req.OriginalQuery)
	covered := 0
	var expectedAggregations []string
	for _, term := range matched {
		if term.CoveredBy(tables, columns) {
			covered++
			result.BusinessTermValidation.MatchedTerms = append(result.BusinessTermValidation.MatchedTerms, term.Name)
		} else {
			result.BusinessTermValidation.UnmatchedTerms = append(result.BusinessTermValidation.UnmatchedTerms, term.Name)
			result.Inconsistencies = append(result.Inconsistencies, models.SemanticInconsistency{
				Kind:    models.CategoryMissingConcept,
				Term:    term.Name,
				Message: fmt.Sprintf("question references %q but the query touches none of its tables or columns", term.Name),
			})
		}
		if term.Aggregation != "" {
			expectedAggregations = append(expectedAggregations, strings.ToUpper(term.Aggregation))
		}
	}

	coverage := 1.0
	if len(matched) > 0 {
		coverage = float64(covered) / float64(len(matched))
	}
	result.BusinessTermValidation.Score = coverage

	// Aggregation intent: cues in the question or an aggregation-bearing
	// glossary term expect aggregate SQL.
	question := strings.ToLower(req.OriginalQuery)
	expectsAggregate := len(expectedAggregations) > 0
	for _, cue := range aggregationCues {
		if strings.Contains(question, cue) {
			expectsAggregate = true
			break
		}
	}

	penalty := 0.0
	if expectsAggregate && !analysis.HasAggregates() {
		penalty += 0.25
		result.Inconsistencies = append(result.Inconsistencies, models.SemanticInconsistency{
			Kind:    models.CategoryAggregationMismatch,
			Message: "question asks for an aggregate but the query returns raw rows",
		})
	}
	for _, want := range expectedAggregations {
		found := false
		for _, agg := range analysis.Aggregates {
			if agg.Func == want {
				found = true
				break
			}
		}
		if !found && analysis.HasAggregates() {
			penalty += 0.15
			result.Inconsistencies = append(result.Inconsistencies, models.SemanticInconsistency{
				Kind:    models.CategoryAggregationMismatch,
				Message: fmt.Sprintf("metric is defined as %s but the query aggregates differently", want),
			})
		}
	}

	alignment := coverage - penalty
	if alignment < 0 {
		alignment = 0
	}
	result.AlignmentScore = alignment

	// Lexical matching is only as confident as the evidence it found.
	switch {
	case len(matched) >= 2:
		result.ConfidenceScore = 0.9
	case len(matched) == 1:
		result.ConfidenceScore = 0.7
	default:
		result.ConfidenceScore = 0.5
	}

	threshold := v.cfg.SemanticThresholdFor(req.Level)
	if alignment < threshold {
		result.AlignmentReason = fmt.Sprintf("alignment %.2f below the %.2f threshold for level %s", alignment, threshold, req.Level)
	} else {
		result.AlignmentReason = fmt.Sprintf("query covers %d of %d referenced business terms", covered, max(len(matched), 1))
	}

	for _, inc := range result.Inconsistencies {
		severity := models.SeverityWarning
		if alignment < threshold {
			severity = models.SeverityError
		}
		outcome.Issues = append(outcome.Issues, models.ValidationIssue{
			Type:     models.TypeSemantic,
			Category: inc.Kind,
			Severity: severity,
			Message:  inc.Message,
			Target:   inc.Term,
		})
	}

	v.logger.Debug("semantic stage complete",
		zap.String("request_id", req.RequestID.String()),
		zap.Float64("alignment", alignment),
		zap.Int("matched_terms", len(matched)),
		zap.Int("inconsistencies", len(result.Inconsistencies)))

	outcome.Score = alignment
	return outcome
}
