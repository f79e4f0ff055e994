package database

import (
	"fmt"

	"github.com/google/uuid"
)

// BinaryUUID converts a UUID to the 16-byte form stored in MySQL BINARY(16) columns.
func BinaryUUID(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

// NullableBinaryUUID is BinaryUUID for optional columns. A nil id becomes SQL NULL.
func NullableBinaryUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return BinaryUUID(*id)
}

// ParseBinaryUUID converts a BINARY(16) column value back to a UUID.
func ParseBinaryUUID(b []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if err := id.UnmarshalBinary(b); err != nil {
		return uuid.Nil, fmt.Errorf("invalid binary uuid: %w", err)
	}
	return id, nil
}

// ParseNullableBinaryUUID is ParseBinaryUUID for nullable columns; an empty value yields nil.
func ParseNullableBinaryUUID(b []byte) (*uuid.UUID, error) {
	if len(b) == 0 {
		return nil, nil
	}
	id, err := ParseBinaryUUID(b)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
