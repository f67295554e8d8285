package room

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a room for the store. Version and status are
// mandatory on every persisted document.
func Encode(r *Room) ([]byte, error) {
	if r.Version == 0 {
		return nil, fmt.Errorf("room %s: refusing to persist version 0", r.Code)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", r.Code, err)
	}
	return data, nil
}

// Decode rebuilds a room from a stored document.
func Decode(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if r.Code == "" || r.Version == 0 {
		return nil, fmt.Errorf("decode room: document missing code or version")
	}
	return &r, nil
}
