package handler

import (
	"encoding/json"

	"github.com/mmeshcher/macd-cancel/internal/models"
	"github.com/mmeshcher/macd-cancel/internal/normalize"
)

// DecodeEvent turns a raw invocation payload into an Event. A payload with
// no body key is a direct invocation and is used as the body itself.
func DecodeEvent(raw json.RawMessage) models.Event {
	v, err := decodeJSON(raw)
	if err != nil {
		return models.Event{Body: string(raw)}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return models.Event{Body: v}
	}

	event := models.Event{Body: obj}
	if body, found := obj["body"]; found && body != nil {
		event.Body = body
	}

	if query, ok := obj["queryStringParameters"].(map[string]any); ok {
		event.QueryStringParameters = make(map[string]string, len(query))
		for k, val := range query {
			event.QueryStringParameters[k] = normalize.String(val)
		}
	}

	return event
}
