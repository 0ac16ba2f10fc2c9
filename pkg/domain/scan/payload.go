// Package scan decodes scanned QR/barcode content into structured payloads.
package scan

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"github.com/propsync/fieldtask/pkg/domain/geo"
)

// payloadSchemaJSON describes the structured wire format of a scanned code:
// a JSON object with an optional code plus an optional embedded target
// coordinate. Latitude and longitude are only meaningful together.
const payloadSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "code": {"type": "string"},
    "latitude": {"type": "number", "minimum": -90, "maximum": 90},
    "longitude": {"type": "number", "minimum": -180, "maximum": 180}
  },
  "dependencies": {
    "latitude": ["longitude"],
    "longitude": ["latitude"]
  }
}`

var payloadSchemaLoader = gojsonschema.NewStringLoader(payloadSchemaJSON)

// Payload is the decoded form of a scanned code. Raw always holds the
// original scanned text. Target is set only when the code carried a valid
// embedded coordinate.
type Payload struct {
	Raw    string     `json:"raw"`
	Code   string     `json:"code"`
	Target *geo.Point `json:"target,omitempty"`
}

// HasTarget reports whether the payload carries an embedded target
// coordinate, which is what makes a completion geofence-gated.
func (p Payload) HasTarget() bool {
	return p.Target != nil
}

type wirePayload struct {
	Code      *string  `json:"code"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Parse decodes a scanned code. It is total: content that is not a valid
// structured payload degrades to an opaque code, never an error. Scanning a
// plain code is legitimate and only skips geofencing.
func Parse(raw string) Payload {
	opaque := Payload{Raw: raw, Code: raw}

	result, err := gojsonschema.Validate(payloadSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		return opaque
	}

	var wire wirePayload
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return opaque
	}

	p := Payload{Raw: raw, Code: raw}
	if wire.Code != nil {
		p.Code = *wire.Code
	}
	if wire.Latitude != nil && wire.Longitude != nil {
		// Ranges are already enforced by the schema.
		target := geo.Point{Latitude: *wire.Latitude, Longitude: *wire.Longitude}
		p.Target = &target
	}
	return p
}
