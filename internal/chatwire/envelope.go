package chatwire

import (
	"encoding/json"
	"fmt"
)

// Envelope is the uniform REST response shape. Every API endpoint wraps its
// payload in this; anything else is treated as a schema violation by clients.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DecodeEnvelope parses raw response bytes as an Envelope and validates its
// shape. A body that is not a JSON object with a boolean "success" field, or
// a failure without an error string, is rejected rather than branched around.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	rawSuccess, ok := probe["success"]
	if !ok {
		return nil, fmt.Errorf("response envelope missing \"success\" field")
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}
	var b bool
	if err := json.Unmarshal(rawSuccess, &b); err != nil {
		return nil, fmt.Errorf("envelope \"success\" is not a boolean")
	}
	if !env.Success && env.Error == "" {
		return nil, fmt.Errorf("failure envelope carries no error message")
	}
	return &env, nil
}
