package sdata

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	cols    map[string][]DBRawColumn
	rels    map[string][]DBRelation
	calls   map[string]int
	failing bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cols: map[string][]DBRawColumn{
			"client": {
				{Name: "id", Type: "int(11)", Nullable: "NO", Key: "PRI", Extra: "auto_increment"},
				{Name: "name", Type: "varchar(255)", Nullable: "NO"},
			},
			"project": {
				{Name: "id", Type: "int(11)", Nullable: "NO", Key: "PRI", Extra: "auto_increment"},
				{Name: "name", Type: "varchar(255)", Nullable: "NO"},
				{Name: "client_id", Type: "int(11)", Nullable: "YES", Key: "MUL"},
				{Name: "created_at", Type: "datetime", Nullable: "NO",
					Default: sql.NullString{String: "CURRENT_TIMESTAMP", Valid: true}},
			},
		},
		rels: map[string][]DBRelation{
			"project": {{Table: "project", Column: "client_id", ForeignTable: "client"}},
		},
		calls: map[string]int{},
	}
}

func (f *fakeSource) Tables(ctx context.Context) ([]string, error) {
	return []string{"client", "project"}, nil
}

func (f *fakeSource) Columns(ctx context.Context, table string) ([]DBRawColumn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["cols:"+table]++
	if f.failing {
		return nil, errors.New("connection refused")
	}
	return f.cols[table], nil
}

func (f *fakeSource) Relations(ctx context.Context, table string) ([]DBRelation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["rels:"+table]++
	rels := make([]DBRelation, len(f.rels[table]))
	copy(rels, f.rels[table])
	return rels, nil
}

func TestNewDBColumn(t *testing.T) {
	tests := []struct {
		raw  DBRawColumn
		typ  ColumnType
		req  bool
		key  KeyKind
		auto bool
	}{
		{DBRawColumn{Name: "id", Type: "int(11)", Nullable: "NO", Key: "PRI", Extra: "auto_increment"},
			TypeNumber, true, KeyPrimary, true},
		{DBRawColumn{Name: "hours", Type: "double", Nullable: "YES"},
			TypeNumber, false, KeyNone, false},
		{DBRawColumn{Name: "price", Type: "numeric", Nullable: "YES"},
			TypeNumber, false, KeyNone, false},
		{DBRawColumn{Name: "at", Type: "datetime", Nullable: "NO"},
			TypeTimestamp, true, KeyNone, false},
		{DBRawColumn{Name: "at", Type: "timestamp without time zone", Nullable: "YES"},
			TypeTimestamp, false, KeyNone, false},
		{DBRawColumn{Name: "name", Type: "varchar(45)", Nullable: "NO", Key: "UNI"},
			TypeText, true, KeyUnique, false},
		{DBRawColumn{Name: "user_id", Type: "bigint", Nullable: "YES", Key: "MUL"},
			TypeNumber, false, KeyMulti, false},
	}

	for _, tt := range tests {
		col := NewDBColumn(tt.raw)
		assert.Equal(t, tt.typ, col.Type, tt.raw.Type)
		assert.Equal(t, tt.req, col.Required, tt.raw.Name)
		assert.Equal(t, tt.key, col.Key, tt.raw.Name)
		assert.Equal(t, tt.auto, col.IsGenerated(), tt.raw.Name)
	}
}

func TestLogicalType(t *testing.T) {
	tests := map[string]ColumnType{
		"INTEGER":                  TypeNumber,
		"int(10) unsigned":         TypeNumber,
		"double precision":         TypeNumber,
		"decimal(10,2)":            TypeNumber,
		"unsigned big int":         TypeNumber,
		"bigserial":                TypeNumber,
		"timestamptz":              TypeTimestamp,
		"date":                     TypeTimestamp,
		"timestamp with time zone": TypeTimestamp,
		"point":                    TypeText,
		"interval":                 TypeText,
		"international":            TypeText,
		"character varying":        TypeText,
		"":                         TypeText,
	}

	for sqlType, want := range tests {
		assert.Equal(t, want, logicalType(sqlType), sqlType)
	}
}

func TestCatalogColumnsMemoized(t *testing.T) {
	src := newFakeSource()
	cat, err := NewCatalog(src, 10)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cols, err := cat.Columns(ctx, "project")
		require.NoError(t, err)
		require.Len(t, cols, 4)
	}
	assert.Equal(t, 1, src.calls["cols:project"])

	ti, err := cat.Table(ctx, "project", "", true)
	require.NoError(t, err)
	assert.Equal(t, "project", ti.Alias)
	assert.True(t, ti.IsRoot)

	pk, ok := ti.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)

	_, err = ti.GetColumn("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	cat.Reload()
	_, err = cat.Columns(ctx, "project")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["cols:project"])
}

func TestCatalogUnknownTable(t *testing.T) {
	cat, err := NewCatalog(newFakeSource(), 10)
	require.NoError(t, err)

	_, err = cat.Table(context.Background(), "nope", "", false)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestCatalogRetriesFailedLoads(t *testing.T) {
	src := newFakeSource()
	src.failing = true

	cat, err := NewCatalog(src, 10)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cat.Columns(ctx, "client")
	require.Error(t, err)

	src.failing = false
	cols, err := cat.Columns(ctx, "client")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
	assert.Equal(t, 2, src.calls["cols:client"])
}

func TestCatalogRelationsDefaultToPrimaryKey(t *testing.T) {
	src := newFakeSource()
	cat, err := NewCatalog(src, 10)
	require.NoError(t, err)

	ctx := context.Background()
	rels, err := cat.Relations(ctx, "project")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "id", rels[0].ForeignColumn)

	_, err = cat.Relations(ctx, "project")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls["rels:project"])
}
