package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope types as written by LangChain's message_to_dict.
const (
	EnvelopeHuman = "human"
	EnvelopeAI    = "ai"
)

var (
	// ErrUnsupportedEnvelope is returned for well-formed envelopes whose
	// type is not a conversational turn (system, tool, function).
	ErrUnsupportedEnvelope = errors.New("message: unsupported envelope type")

	// ErrMalformedEnvelope is returned when the payload is not an envelope.
	ErrMalformedEnvelope = errors.New("message: malformed envelope")
)

// Envelope is the JSON record persisted for each turn by JSON-backed
// stores. Field order matches the records produced by LangChain so rows
// written by either side stay interchangeable.
type Envelope struct {
	Type string       `json:"type"`
	Data EnvelopeData `json:"data"`
}

// EnvelopeData is the inner "data" object of an Envelope.
type EnvelopeData struct {
	Content          json.RawMessage `json:"content"`
	AdditionalKwargs map[string]any  `json:"additional_kwargs"`
	ResponseMetadata map[string]any  `json:"response_metadata"`
	Type             string          `json:"type"`
	Name             *string         `json:"name"`
	ID               *string         `json:"id"`
	Example          bool            `json:"example"`
}

// EnvelopeType maps a role to its envelope type.
func (r Role) EnvelopeType() string {
	if r == RoleAssistant {
		return EnvelopeAI
	}
	return EnvelopeHuman
}

// MarshalEnvelope encodes a turn body as an envelope.
func MarshalEnvelope(role Role, content string) ([]byte, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("message: invalid role %q", role)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	typ := role.EnvelopeType()
	return json.Marshal(Envelope{
		Type: typ,
		Data: EnvelopeData{
			Content:          raw,
			AdditionalKwargs: map[string]any{},
			ResponseMetadata: map[string]any{},
			Type:             typ,
		},
	})
}

// UnmarshalEnvelope decodes an envelope into its role and text content.
// Content given as a list of parts has its text parts concatenated.
func UnmarshalEnvelope(data []byte) (Role, string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}

	typ := env.Type
	if typ == "" {
		typ = env.Data.Type
	}

	var role Role
	switch typ {
	case EnvelopeHuman:
		role = RoleHuman
	case EnvelopeAI, "AIMessageChunk":
		role = RoleAssistant
	case "":
		return "", "", fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedEnvelope, typ)
	}

	content, err := decodeContent(env.Data.Content)
	if err != nil {
		return "", "", err
	}
	return role, content, nil
}

// contentPart is one element of a multi-part content list.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func decodeContent(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: content: %w", ErrMalformedEnvelope, err)
		}
		return s, nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", fmt.Errorf("%w: content: %w", ErrMalformedEnvelope, err)
		}
		var b strings.Builder
		for _, p := range parts {
			var s string
			if json.Unmarshal(p, &s) == nil {
				b.WriteString(s)
				continue
			}
			var part contentPart
			if json.Unmarshal(p, &part) == nil && part.Type == "text" {
				b.WriteString(part.Text)
			}
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("%w: content is neither string nor list", ErrMalformedEnvelope)
	}
}
