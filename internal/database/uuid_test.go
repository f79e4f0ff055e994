package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryUUID(t *testing.T) {
	id := uuid.Must(uuid.NewV7())

	b := BinaryUUID(id)
	require.Len(t, b, 16)

	parsed, err := ParseBinaryUUID(b)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseBinaryUUID_Invalid(t *testing.T) {
	_, err := ParseBinaryUUID([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNullableBinaryUUID(t *testing.T) {
	assert.Nil(t, NullableBinaryUUID(nil))

	id := uuid.Must(uuid.NewV7())
	assert.Equal(t, BinaryUUID(id), NullableBinaryUUID(&id))

	parsed, err := ParseNullableBinaryUUID(nil)
	require.NoError(t, err)
	assert.Nil(t, parsed)

	parsed, err = ParseNullableBinaryUUID(BinaryUUID(id))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, id, *parsed)
}
