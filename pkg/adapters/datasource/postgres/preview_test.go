package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExplainJSON(t *testing.T) {
	plan := `[
	  {
	    "Plan": {
	      "Node Type": "Seq Scan",
	      "Relation Name": "players",
	      "Startup Cost": 0.00,
	      "Total Cost": 35.50,
	      "Plan Rows": 2550,
	      "Plan Width": 4
	    }
	  }
	]`

	result, err := parseExplainJSON([]byte(plan))
	require.NoError(t, err)
	assert.Equal(t, int64(2550), result.EstimatedRows)
	assert.Equal(t, 35.50, result.EstimatedCost)
	assert.Contains(t, result.Plan, "Seq Scan")
}

func TestParseExplainJSON_NestedPlan(t *testing.T) {
	plan := `[
	  {
	    "Plan": {
	      "Node Type": "Hash Join",
	      "Total Cost": 120.75,
	      "Plan Rows": 40,
	      "Plans": [
	        {"Node Type": "Seq Scan", "Total Cost": 35.50, "Plan Rows": 2550},
	        {"Node Type": "Hash", "Total Cost": 60.10, "Plan Rows": 40}
	      ]
	    }
	  }
	]`

	result, err := parseExplainJSON([]byte(plan))
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.EstimatedRows)
	assert.Equal(t, 120.75, result.EstimatedCost)
}

func TestParseExplainJSON_Invalid(t *testing.T) {
	_, err := parseExplainJSON([]byte("not json"))
	assert.Error(t, err)

	_, err = parseExplainJSON([]byte("[]"))
	assert.Error(t, err)
}
