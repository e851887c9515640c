package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput wraps completions that are not the JSON the caller
// asked for.
var ErrMalformedOutput = errors.New("gateway: malformed model output")

// StripFence removes one leading ```json or ``` fence and one trailing ```
// fence, then trims whitespace. Unfenced text is only trimmed.
func StripFence(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeJSON strips fences and decodes the completion into v.
func DecodeJSON(content string, v interface{}) error {
	if err := json.Unmarshal([]byte(StripFence(content)), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
