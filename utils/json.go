package utils

import (
	"encoding/json"
)

// MustMarshalJSON marshals values that cannot fail to encode; it falls back
// to JSON null.
func MustMarshalJSON[T any](input T) []byte {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return []byte("null")
	}
	return jsonData
}
