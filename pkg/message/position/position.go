package position

import (
	"encoding/json"

	"github.com/sessamekesh/position-relay/pkg/errors"
)

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type wirePosition struct {
	X *float32 `json:"x"`
	Y *float32 `json:"y"`
}

// Serialize encodes a position as the text frame payload {"x":..,"y":..}.
func Serialize(p Position) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", &errors.MalformedMessage{MessageName: "Position", Reason: err}
	}
	return string(b), nil
}

func Parse(payload []byte) (*Position, error) {
	var w wirePosition
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, &errors.MalformedMessage{MessageName: "Position", Reason: err}
	}

	if w.X == nil {
		return nil, &errors.MissingFieldError{MessageName: "Position", FieldName: "x"}
	}
	if w.Y == nil {
		return nil, &errors.MissingFieldError{MessageName: "Position", FieldName: "y"}
	}

	return &Position{X: *w.X, Y: *w.Y}, nil
}
