// Package prompts builds the model prompts used for SQL correction.
package prompts

import (
	"fmt"
	"strings"

	"github.com/sqlguard-ai/sqlguard-engine/pkg/models"
)

// CorrectionInput is the material a correction prompt is built from.
type CorrectionInput struct {
	SQL           string
	Question      string
	Strategy      models.CorrectionStrategy
	Issues        []models.ValidationIssue
	SchemaContext string
}

// CorrectionSystemPrompt is the system message for every correction call.
const CorrectionSystemPrompt = `You are a SQL repair assistant. You receive a SELECT statement that failed validation, the natural language question it was generated for, and the validation findings. Produce a minimally changed, corrected SELECT statement that answers the question and resolves the findings. Never produce INSERT, UPDATE, DELETE, DDL, or multiple statements. Respond with JSON only.`

// strategyGuidance tailors the instructions to the failure category being
// repaired.
var strategyGuidance = map[models.CorrectionStrategy]string{
	models.StrategySecurity: "Remove unsafe constructs. Replace SELECT * with an explicit column list and add restrictive WHERE conditions where the intent allows.",
	models.StrategySemantic: "Align the query with the question: add the missing business concepts, remove unrelated ones, and use the aggregation the question implies.",
	models.StrategySchema:   "Fix references against the provided schema: correct table and column names, complete every JOIN with its condition, and add the required filters.",
	models.StrategyBusinessLogic: "Respect the policy findings: drop tables and columns the caller may not access, avoid returning sensitive columns, and fix GROUP BY / aggregate structure.",
}

// BuildCorrectionPrompt renders the user prompt for one correction attempt.
func BuildCorrectionPrompt(in *CorrectionInput) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Correction\n\n")
	prompt.WriteString(fmt.Sprintf("Strategy: %s\n", in.Strategy))
	if guidance, ok := strategyGuidance[in.Strategy]; ok {
		prompt.WriteString(guidance)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n## Question\n\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n\n## Failing SQL\n\n")
	prompt.WriteString("```sql\n")
	prompt.WriteString(in.SQL)
	prompt.WriteString("\n```\n")

	if len(in.Issues) > 0 {
		prompt.WriteString("\n## Validation Findings\n\n")
		for _, iss := range in.Issues {
			if iss.Target != "" {
				prompt.WriteString(fmt.Sprintf("- [%s/%s] %s (%s)\n", iss.Severity, iss.Category, iss.Message, iss.Target))
				continue
			}
			prompt.WriteString(fmt.Sprintf("- [%s/%s] %s\n", iss.Severity, iss.Category, iss.Message))
		}
	}

	if in.SchemaContext != "" {
		prompt.WriteString("\n## Schema\n\n")
		prompt.WriteString(in.SchemaContext)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n## Response Format\n\n")
	prompt.WriteString("Respond with a JSON object and nothing else:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "corrected_sql": "the corrected SELECT statement",
  "reason": "one sentence explaining the change",
  "issues_addressed": ["category of each finding the change resolves"]
}`)
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// RenderSchemaContext formats a table listing for the prompt's schema
// section.
func RenderSchemaContext(tables []SchemaTable) string {
	if len(tables) == 0 {
		return ""
	}

	var b strings.Builder
	for _, table := range tables {
		b.WriteString(fmt.Sprintf("### %s\n", table.Name))
		if len(table.RequiredFilters) > 0 {
			b.WriteString(fmt.Sprintf("Required filters: %s\n", strings.Join(table.RequiredFilters, ", ")))
		}
		b.WriteString("Columns:\n")
		for _, col := range table.Columns {
			flags := ""
			if col.Sensitive {
				flags = " [sensitive]"
			}
			b.WriteString(fmt.Sprintf("- %s %s%s\n", col.Name, col.DataType, flags))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// SchemaTable is the prompt-facing view of one table.
type SchemaTable struct {
	Name            string
	RequiredFilters []string
	Columns         []SchemaColumn
}

// SchemaColumn is the prompt-facing view of one column.
type SchemaColumn struct {
	Name      string
	DataType  string
	Sensitive bool
}
