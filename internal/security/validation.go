package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Default payload limits for inbound chat requests and websocket frames.
const (
	DefaultMaxPayloadBytes = 64 << 10
	DefaultMaxJSONDepth    = 16
)

// Validation errors.
var (
	ErrPayloadTooLarge = errors.New("security: payload too large")
	ErrJSONTooDeep     = errors.New("security: JSON nesting too deep")
	ErrInvalidJSON     = errors.New("security: invalid JSON")
)

// PayloadLimits bounds untrusted JSON payloads.
type PayloadLimits struct {
	MaxBytes int `yaml:"max_bytes"`
	MaxDepth int `yaml:"max_depth"`
}

// WithDefaults fills zero limits.
func (l PayloadLimits) WithDefaults() PayloadLimits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxPayloadBytes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxJSONDepth
	}
	return l
}

// Check validates size and nesting of data before it is decoded.
func (l PayloadLimits) Check(data []byte) error {
	l = l.WithDefaults()
	if len(data) > l.MaxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), l.MaxBytes)
	}
	return checkDepth(data, l.MaxDepth)
}

// checkDepth walks the token stream so a deeply nested document is
// rejected without being materialized.
func checkDepth(data []byte, limit int) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case '}', ']':
			depth--
		}
	}
}
