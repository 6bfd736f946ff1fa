package upstream

import (
	"encoding/json"
	"fmt"
)

// envelope is the single response shape every collaborator must conform to.
// The legacy services answered with a bare array, {data: [...]}, or
// {exists, data} depending on the endpoint; the shape is validated here once
// and never re-sniffed downstream.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// decodeEnvelope accepts either a bare JSON array/object or a wrapped
// {success, data} payload and returns the inner data bytes.
func decodeEnvelope(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	// Bare array responses come from the oldest endpoints.
	if raw[0] == '[' {
		return json.RawMessage(raw), nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, fmt.Errorf("collaborator reported failure")
	}
	if len(env.Data) > 0 {
		return env.Data, nil
	}

	// An object without a data field is treated as the payload itself.
	return json.RawMessage(raw), nil
}
