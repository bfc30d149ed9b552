package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
)

// recordsFromBody accepts either a bare array or a {"data": [...]} envelope.
func recordsFromBody(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var records []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '[' {
		return nil, errors.New("data is not a list")
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// subOrderFromBody pulls the updated suborder out of a mutation response, if there is one.
func subOrderFromBody(body []byte) *orders.SubOrder {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var envelope struct {
		Data     json.RawMessage `json:"data"`
		SubOrder json.RawMessage `json:"subOrder"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil
	}

	for _, candidate := range []json.RawMessage{envelope.SubOrder, envelope.Data, trimmed} {
		if sub := decodeCandidate(candidate); sub != nil {
			return sub
		}
	}
	return nil
}

func decodeCandidate(raw json.RawMessage) *orders.SubOrder {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var probe struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil || len(probe.Items) == 0 {
		return nil
	}
	var sub orders.SubOrder
	if err := json.Unmarshal(trimmed, &sub); err != nil || sub.ID == "" {
		return nil
	}
	return &sub
}

// parseUpstreamError reads {message, data:{message, errors}}; data.message wins over message.
func parseUpstreamError(status int, body []byte) *pkgerrors.UpstreamError {
	upstream := &pkgerrors.UpstreamError{Status: status}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Data    *struct {
			Message string                     `json:"message"`
			Errors  map[string]json.RawMessage `json:"errors"`
		} `json:"data"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return upstream
	}

	switch {
	case payload.Data != nil && strings.TrimSpace(payload.Data.Message) != "":
		upstream.Message = strings.TrimSpace(payload.Data.Message)
	case strings.TrimSpace(payload.Message) != "":
		upstream.Message = strings.TrimSpace(payload.Message)
	case strings.TrimSpace(payload.Error) != "":
		upstream.Message = strings.TrimSpace(payload.Error)
	}

	if payload.Data != nil && len(payload.Data.Errors) > 0 {
		upstream.FieldErrors = make(map[string]string, len(payload.Data.Errors))
		for field, raw := range payload.Data.Errors {
			upstream.FieldErrors[field] = fieldMessage(raw)
		}
	}
	return upstream
}

// fieldMessage flattens a field error that may be a string, a list of strings or an object
// carrying a message.
func fieldMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var obj struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		if obj.Msg != "" {
			return obj.Msg
		}
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err == nil {
		keys := make([]string, 0, len(generic))
		for k := range generic {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, generic[k]))
		}
		return strings.Join(parts, ", ")
	}
	return strings.TrimSpace(string(raw))
}
