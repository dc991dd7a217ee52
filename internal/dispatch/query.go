package dispatch

import (
	"encoding/json"
	"errors"
	"net/url"
)

// queryValues converts a GET payload into query parameters. url.Values and
// map[string]string pass through; anything else must encode to a JSON object
// whose members become parameters.
func queryValues(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case url.Values:
		return p, nil
	case map[string]string:
		values := make(url.Values, len(p))
		for key, value := range p {
			values.Set(key, value)
		}
		return values, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, errors.New("query payload must be an object")
	}

	values := make(url.Values, len(members))
	for key, raw := range members {
		// Arrays become repeated parameters
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err == nil {
			for _, item := range list {
				values.Add(key, scalar(item))
			}
			continue
		}
		values.Set(key, scalar(raw))
	}
	return values, nil
}

// scalar renders strings without quotes and everything else as JSON text.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
