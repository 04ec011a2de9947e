package cartrpc

import (
	"encoding/json"
)

// codec carries cart messages as JSON so the service needs no generated code.
// It is passed explicitly to the server and client and never registered
// globally.
type codec struct{}

const codecName = "cartrpc-json"

func (codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (codec) Name() string                       { return codecName }
