package work

import (
	"bytes"
	"encoding/json"
	"unicode"
	"unicode/utf8"

	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
)

// NotifyHeader is the optional message header naming an extra notification topic.
const NotifyHeader = "notify"

// descriptorBody is the JSON shape of a dimension-driven trigger.
type descriptorBody struct {
	Dimensions map[string]int64 `json:"dimensions"`
}

// ParseMessage validates a delivery and builds its Message.
// Every failure is a MalformedMessageError: the delivery can never succeed.
func ParseMessage(tag uint64, body []byte, msgType string, headers map[string]interface{}, maxBytes int) (Message, error) {
	if len(body) == 0 {
		return Message{}, cerrors.Malformedf("empty body")
	}
	if maxBytes > 0 && len(body) > maxBytes {
		return Message{}, cerrors.Malformedf("body of %d bytes exceeds limit of %d", len(body), maxBytes)
	}

	scope, err := ParseScope(msgType)
	if err != nil {
		return Message{}, cerrors.Malformedf("%v", err)
	}

	item := Item{Scope: scope, NotifyTopic: notifyTopic(headers)}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		desc, err := parseDescriptor(trimmed)
		if err != nil {
			return Message{}, err
		}
		if scope != ScopeGlobal {
			return Message{}, cerrors.Malformedf("dimension descriptor is only valid for %s scope, got %s", ScopeGlobal, scope)
		}
		item.Descriptor = desc
		item.ID = desc.Key()
	} else {
		id, err := parseIdentifier(trimmed)
		if err != nil {
			return Message{}, err
		}
		item.ID = id
	}

	return Message{
		DeliveryTag: tag,
		Body:        body,
		Type:        string(scope),
		Headers:     headers,
		Item:        item,
	}, nil
}

func parseDescriptor(body []byte) (Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var raw descriptorBody
	if err := dec.Decode(&raw); err != nil {
		return nil, cerrors.Malformedf("invalid descriptor: %v", err)
	}
	if len(raw.Dimensions) == 0 {
		return nil, cerrors.Malformedf("descriptor names no dimensions")
	}
	for name := range raw.Dimensions {
		if name == "" {
			return nil, cerrors.Malformedf("descriptor has an empty dimension name")
		}
	}
	return Descriptor(raw.Dimensions), nil
}

func parseIdentifier(body []byte) (string, error) {
	if len(body) == 0 {
		return "", cerrors.Malformedf("blank identifier")
	}
	if !utf8.Valid(body) {
		return "", cerrors.Malformedf("identifier is not valid UTF-8")
	}
	for _, r := range string(body) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", cerrors.Malformedf("identifier contains whitespace or control characters")
		}
	}
	return string(body), nil
}

func notifyTopic(headers map[string]interface{}) string {
	if headers == nil {
		return ""
	}
	switch v := headers[NotifyHeader].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
