package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vango-dev/objbridge/internal/codec"
)

// Encode serialises m to CBOR.
func Encode(m *Message) ([]byte, error) {
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return data, nil
}

// Decode parses a CBOR message and validates it.
func Decode(data []byte) (*Message, error) {
	if len(data) > MaxMessageSize {
		return nil, invalidf("message of %d bytes exceeds %d", len(data), MaxMessageSize)
	}
	var m Message
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// EncodeJSON serialises m to JSON.
func EncodeJSON(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode json: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a JSON message and validates it.
func DecodeJSON(data []byte) (*Message, error) {
	if len(data) > MaxMessageSize {
		return nil, invalidf("message of %d bytes exceeds %d", len(data), MaxMessageSize)
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("protocol: decode json: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Clone copies m through the CBOR encoding, the way a byte transport would.
func Clone(m *Message) (*Message, error) {
	data, err := Encode(m)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// CloneJSON copies m through the JSON encoding.
func CloneJSON(m *Message) (*Message, error) {
	data, err := EncodeJSON(m)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(data)
}
