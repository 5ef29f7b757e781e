package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestUniqueEmailIndexModel(t *testing.T) {
	m := uniqueEmailIndex()

	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, m.Keys)
	require.NotNil(t, m.Options)
	require.NotNil(t, m.Options.Unique)
	assert.True(t, *m.Options.Unique)
}

func TestEmailIndexCoversBothAccountCollections(t *testing.T) {
	assert.ElementsMatch(t, []string{"users", "caregivers"}, emailIndexedCollections)
}
