package utils

import (
	"encoding/json"
	"fmt"

	hjson "github.com/hjson/hjson-go/v4"
)

// ParseScenario decodes a hand-written analysis scenario into schema.
// Strict JSON is tried first; Hjson second, so scenario files may carry
// comments, unquoted keys and optional commas.
func ParseScenario(input []byte, schema interface{}) error {
	if err := json.Unmarshal(input, schema); err == nil {
		return nil
	}
	if err := hjson.Unmarshal(input, schema); err != nil {
		return fmt.Errorf("scenario is neither valid JSON nor Hjson: %w", err)
	}
	return nil
}
