package db

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// tombstone replaces deleted values. The underlying store has no delete.
var tombstone = []byte("deleted")

func isTombstone(data []byte) bool {
	return bytes.Equal(data, tombstone)
}

// present reports whether a raw read holds a live value.
func present(data []byte) bool {
	return data != nil && !isTombstone(data)
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}
