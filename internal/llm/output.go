package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencedJSON     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\})\\s*```")
)

// ErrNoJSON is returned when the output holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model output")

// StripReasoning drops <think> blocks some models emit before the answer.
func StripReasoning(content string) string {
	return strings.TrimSpace(reasoningBlock.ReplaceAllString(content, ""))
}

// ExtractJSON returns the JSON object of content: the first ```json fence if
// there is one, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(content string) (string, error) {
	content = StripReasoning(content)
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1], nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return content[start : end+1], nil
}

// DecodeJSON extracts and decodes the JSON object of content into v.
func DecodeJSON(content string, v any) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
