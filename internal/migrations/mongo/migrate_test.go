package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections(t *testing.T) {
	defs := Collections()
	require.Len(t, defs, 3)

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
		assert.NotEmpty(t, def.Indexes, def.Name)
		schema, ok := def.Validator["$jsonSchema"].(bson.M)
		require.True(t, ok, def.Name)
		assert.NotEmpty(t, schema["required"], def.Name)
	}
	assert.Equal(t, []string{"resources", "bookings", "resource_locks"}, names)
}

func TestResourceNameIndexIsCaseInsensitiveUnique(t *testing.T) {
	opts := ResourcesIndexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.Unique)
	assert.True(t, *opts.Unique)
	require.NotNil(t, opts.Collation)
	assert.Equal(t, 2, opts.Collation.Strength)
}

func TestLockIndexExpiresDocuments(t *testing.T) {
	opts := LocksIndexes[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *opts.ExpireAfterSeconds)
}
