package chain

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Decoder turns the raw return value of a call into a displayable value.
type Decoder interface {
	Decode(function string, abi json.RawMessage, raw json.RawMessage) (json.RawMessage, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(function string, abi json.RawMessage, raw json.RawMessage) (json.RawMessage, error)

func (f DecoderFunc) Decode(function string, abi json.RawMessage, raw json.RawMessage) (json.RawMessage, error) {
	return f(function, abi, raw)
}

var errEmptyReturn = errors.New("empty return data")

// JSONDecoder accepts return data that is already well-formed JSON and rejects
// everything else.
type JSONDecoder struct{}

func (JSONDecoder) Decode(_ string, _ json.RawMessage, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errEmptyReturn
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("return data is not valid JSON")
	}
	return append(json.RawMessage(nil), trimmed...), nil
}
