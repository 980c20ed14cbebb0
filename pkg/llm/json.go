package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that reasoning models
// prepend to their responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// ExtractJSON extracts JSON content from a model response that may contain
// <think> tags, markdown code blocks, or surrounding prose.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if start := strings.IndexByte(cleaned, '{'); start >= 0 {
		if jsonStr, ok := extractBalancedJSON(cleaned, '{', '}'); ok {
			if json.Valid([]byte(jsonStr)) {
				return jsonStr, nil
			}
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// extractBalancedJSON finds the first balanced JSON structure starting with
// openChar, counting bracket depth and honoring string escapes.
func extractBalancedJSON(s string, openChar, closeChar byte) (string, bool) {
	start := strings.IndexByte(s, openChar)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == openChar {
			depth++
		} else if c == closeChar {
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// correctionPayload is the JSON shape the correction prompts ask for.
type correctionPayload struct {
	CorrectedSQL    string   `json:"corrected_sql"`
	Reason          string   `json:"reason"`
	IssuesAddressed []string `json:"issues_addressed"`
}

// parseCorrectionResponse turns raw model output into a CorrectionResult.
// A response without usable SQL is a non-retryable response error; the
// caller's loop treats it as a failed attempt, not a transport failure.
func parseCorrectionResponse(content string) (*CorrectionResult, error) {
	jsonStr, err := ExtractJSON(content)
	if err != nil {
		return nil, NewError(ErrorTypeResponse, "response contains no JSON", false, err)
	}

	var payload correctionPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, NewError(ErrorTypeResponse, "response JSON does not match the expected shape", false, err)
	}
	if strings.TrimSpace(payload.CorrectedSQL) == "" {
		return nil, NewError(ErrorTypeResponse, "response JSON has no corrected_sql", false, nil)
	}

	return &CorrectionResult{
		CorrectedSQL:    strings.TrimSpace(payload.CorrectedSQL),
		Reason:          strings.TrimSpace(payload.Reason),
		IssuesAddressed: payload.IssuesAddressed,
	}, nil
}
