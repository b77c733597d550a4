package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is an opaque position marker for paginating the listing
// endpoints (files, events). Adapted from the teacher's
// MessageCursor: same index+timestamp shape, generalized beyond chat
// message pagination to any timestamped record listing.
type Cursor struct {
	// Timestamp of the record (RFC3339), included so a cursor stays
	// meaningful even if ids are renumbered.
	Timestamp string `json:"t"`
	// Index is the position in the listed (already-sorted) slice.
	Index int `json:"i"`
}

func EncodeCursor(cursor Cursor) (string, error) {
	jsonBytes, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(jsonBytes), nil
}

func DecodeCursor(encoded string) (Cursor, error) {
	var cursor Cursor
	if encoded == "" {
		return cursor, nil
	}

	jsonBytes, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, fmt.Errorf("failed to decode cursor: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, &cursor); err != nil {
		return cursor, fmt.Errorf("failed to unmarshal cursor: %w", err)
	}
	return cursor, nil
}
