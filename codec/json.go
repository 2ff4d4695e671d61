package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Stable and portable; use it when persisted artifacts must be readable by
// tools outside this module.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for newly persisted artifacts. Existing
// artifacts are self-describing and are opened by codec name.
var Default Codec = GoJSON{}
