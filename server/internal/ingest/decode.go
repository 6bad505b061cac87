package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/motortwin/motortwin/pkg/types"
)

// readingInput distinguishes absent fields from zero values.
type readingInput struct {
	MotorID     string   `json:"motor_id"`
	Temperature *float64 `json:"temperature"`
	Vibration   *float64 `json:"vibration"`
	RPM         *float64 `json:"rpm"`
	Load        *float64 `json:"load"`
	Timestamp   *float64 `json:"timestamp"`
}

// DecodeReading parses a JSON reading body. Temperature, vibration, rpm and
// load are required; motor_id and timestamp are optional. Any id or status in
// the body is ignored.
func DecodeReading(data []byte) (types.Reading, error) {
	var in readingInput
	if err := json.Unmarshal(data, &in); err != nil {
		return types.Reading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	required := []struct {
		name string
		v    *float64
	}{
		{"temperature", in.Temperature},
		{"vibration", in.Vibration},
		{"rpm", in.RPM},
		{"load", in.Load},
	}
	for _, f := range required {
		if f.v == nil {
			return types.Reading{}, fmt.Errorf("%w: %s is required", ErrInvalidReading, f.name)
		}
	}
	r := types.Reading{
		MotorID:     in.MotorID,
		Temperature: *in.Temperature,
		Vibration:   *in.Vibration,
		RPM:         *in.RPM,
		Load:        *in.Load,
	}
	if in.Timestamp != nil {
		r.Timestamp = *in.Timestamp
	}
	return r, nil
}
