package position

import (
	goerrs "errors"
	"testing"

	"github.com/sessamekesh/position-relay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeProducesXYObject(t *testing.T) {
	payload, err := Serialize(Position{X: 1.5, Y: -2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1.5,"y":-2}`, payload)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		want      *Position
		wantField string
		malformed bool
	}{
		{name: "valid", payload: `{"x":10,"y":20.25}`, want: &Position{X: 10, Y: 20.25}},
		{name: "extra fields ignored", payload: `{"x":0,"y":0,"z":3}`, want: &Position{}},
		{name: "missing x", payload: `{"y":1}`, wantField: "x"},
		{name: "missing y", payload: `{"x":1}`, wantField: "y"},
		{name: "plain text", payload: `Thank you, come again.`, malformed: true},
		{name: "array", payload: `[1,2]`, malformed: true},
		{name: "hex token", payload: `0a1b2c3d`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.payload))

			switch {
			case tt.wantField != "":
				var missing *errors.MissingFieldError
				require.True(t, goerrs.As(err, &missing))
				assert.Equal(t, tt.wantField, missing.FieldName)
			case tt.malformed:
				var malformed *errors.MalformedMessage
				require.True(t, goerrs.As(err, &malformed))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
