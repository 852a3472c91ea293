package roster

import (
	"encoding/json"

	"github.com/sessamekesh/position-relay/pkg/errors"
)

// Client is one entry of a roster: another connected client and where it
// last reported itself.
type Client struct {
	Uuid     string     `json:"uuid"`
	Position [2]float32 `json:"position"`
}

func Serialize(clients []Client) (string, error) {
	if clients == nil {
		clients = []Client{}
	}
	b, err := json.Marshal(clients)
	if err != nil {
		return "", &errors.MalformedMessage{MessageName: "Roster", Reason: err}
	}
	return string(b), nil
}

func Parse(payload string) ([]Client, error) {
	var clients []Client
	if err := json.Unmarshal([]byte(payload), &clients); err != nil {
		return nil, &errors.MalformedMessage{MessageName: "Roster", Reason: err}
	}

	for _, c := range clients {
		if c.Uuid == "" {
			return nil, &errors.MissingFieldError{MessageName: "Roster::Client", FieldName: "uuid"}
		}
	}

	return clients, nil
}
