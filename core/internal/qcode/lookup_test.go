package qcode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDiscoverDepthBound(t *testing.T) {
	co := newTestCompiler()
	ctx := context.Background()

	lookups, err := co.Discover(ctx, "task", 0)
	require.NoError(t, err)
	assert.Empty(t, lookups)

	lookups, err = co.Discover(ctx, "task", 1)
	require.NoError(t, err)
	assert.Equal(t, []Lookup{
		{From: "project", LocalField: "project_id", ForeignField: "id", As: "project", Type: CardSimple},
		{From: "user", LocalField: "affected_user_id", ForeignField: "id", As: "user", Type: CardSimple},
		{From: "user", LocalField: "owner_user_id", ForeignField: "id", As: "owner_user_id", Type: CardSimple},
	}, lookups)

	lookups, err = co.Discover(ctx, "task", 2)
	require.NoError(t, err)
	require.Len(t, lookups, 5)
	assert.Equal(t, Lookup{From: "client", LocalField: "client_id", ForeignField: "id",
		As: "project.client", To: "project", Type: CardSimple}, lookups[3])
	assert.Equal(t, Lookup{From: "user", LocalField: "project_manager_user_id", ForeignField: "id",
		As: "project.user", To: "project", Type: CardSimple}, lookups[4])

	_, err = co.Discover(ctx, "task", 4)
	assert.ErrorIs(t, err, ErrWrongParameter)

	_, err = co.Discover(ctx, "task", -1)
	assert.ErrorIs(t, err, ErrWrongParameter)
}

func TestDiscoveredLookupsCompile(t *testing.T) {
	co := newTestCompiler()
	ctx := context.Background()

	lookups, err := co.Lookups(ctx, "task", nil, 2)
	require.NoError(t, err)

	sel, err := co.CompileSelect(ctx, "task", lookups, nil, nil)
	require.NoError(t, err)
	require.Len(t, sel.Joins, 5)

	for _, a := range []string{"project.id", "user.id", "owner_user_id.id",
		"project.client.id", "project.user.id", "project.client.name"} {
		_, ok := sel.Field(a)
		assert.True(t, ok, a)
	}

	_, err = co.Lookups(ctx, "task", []Lookup{projectLookup}, 1)
	assert.ErrorIs(t, err, ErrWrongParameter)
}

func TestDecodeLookups(t *testing.T) {
	lookups, err := DecodeLookups(bson.A{
		bson.D{
			{Key: "from", Value: "door_category"},
			{Key: "localField", Value: "id"},
			{Key: "foreignField", Value: "door_id"},
			{Key: "as", Value: "categories"},
			{Key: "type", Value: "multiple"},
		},
		map[string]any{
			"from": "category", "localField": "category_id", "foreignField": "id",
			"as": "categories.category", "to": "categories",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, categoryLookups, lookups)

	_, err = DecodeLookups(bson.A{bson.D{{Key: "form", Value: "x"}}})
	assert.ErrorIs(t, err, ErrWrongParameter)

	_, err = DecodeLookups("project")
	assert.ErrorIs(t, err, ErrWrongParameter)

	lookups, err = DecodeLookups(nil)
	require.NoError(t, err)
	assert.Nil(t, lookups)
}
