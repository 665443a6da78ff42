package llm

import (
	"encoding/json"
	"fmt"
)

// Decode unmarshals a model response into v. Models sometimes wrap the JSON
// object in prose or code fences, so a failed direct parse falls back to
// the outermost brace pair.
func Decode(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	jsonStart := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			jsonStart = i
			break
		}
	}
	jsonEnd := -1
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			jsonEnd = i + 1
			break
		}
	}

	if jsonStart < 0 || jsonEnd <= jsonStart {
		return fmt.Errorf("no JSON object in model response")
	}
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd]), v); err != nil {
		return fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return nil
}
