package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseSort(t *testing.T) {
	keys, err := ParseSort(bson.A{bson.A{"project.name", -1}, bson.A{"id", int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, []SortKey{{Key: "project.name", Dir: -1}, {Key: "id", Dir: 1}}, keys)

	keys, err = ParseSort(bson.D{{Key: "hours", Value: int32(-1)}, {Key: "title", Value: "1"}})
	require.NoError(t, err)
	assert.Equal(t, []SortKey{{Key: "hours", Dir: -1}, {Key: "title", Dir: 1}}, keys)

	keys, err = ParseSort(nil)
	require.NoError(t, err)
	assert.Nil(t, keys)

	for _, bad := range []any{"hours", bson.A{bson.A{"hours"}}, bson.A{bson.A{1, 1}}, bson.D{{Key: "x", Value: "up"}}} {
		_, err = ParseSort(bad)
		assert.ErrorIs(t, err, ErrWrongParameter, "%v", bad)
	}
}

func TestMergeFindOptions(t *testing.T) {
	o := mergeFindOptions([]*FindOptions{
		Find().SetProjection(bson.D{{Key: "id", Value: 1}}),
		nil,
		Find().SetAutoLookup(2),
	})
	assert.Equal(t, bson.D{{Key: "id", Value: 1}}, o.Projection)
	assert.Equal(t, 2, o.AutoLookup)
	assert.Nil(t, o.Lookup)
}
