package task

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// payloadJSON keeps numbers as json.Number so decoded arguments encode back
// to the same text they arrived as.
var payloadJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// DecodeArgs parses a JSON array of positional arguments. Empty input means none.
func DecodeArgs(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var args []any
	if err := payloadJSON.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return args, nil
}

// DecodeKwargs parses a JSON object of keyword arguments. Empty input means none.
func DecodeKwargs(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var kwargs map[string]any
	if err := payloadJSON.Unmarshal(data, &kwargs); err != nil {
		return nil, fmt.Errorf("decode kwargs: %w", err)
	}
	return kwargs, nil
}

// EncodeArgs renders positional arguments as a JSON array.
func EncodeArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return payloadJSON.Marshal(args)
}

// EncodeKwargs renders keyword arguments as a JSON object.
func EncodeKwargs(kwargs map[string]any) ([]byte, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return payloadJSON.Marshal(kwargs)
}
