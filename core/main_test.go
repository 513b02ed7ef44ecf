package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sqlcollection/sqlcollection/core/internal/jsn"
	"github.com/sqlcollection/sqlcollection/internal/sqlite"
)

const testSchema = `
CREATE TABLE client (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE member (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT UNIQUE
);
CREATE TABLE project (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	client_id INTEGER REFERENCES client(id)
);
CREATE TABLE task (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	hours REAL,
	created_at DATETIME,
	project_id INTEGER REFERENCES project(id),
	member_id INTEGER REFERENCES member(id)
);
CREATE TABLE door (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE category (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE door_category (
	id INTEGER PRIMARY KEY,
	door_id INTEGER NOT NULL REFERENCES door(id),
	category_id INTEGER NOT NULL REFERENCES category(id)
);
`

var projectLookup = Lookup{From: "project", LocalField: "project_id", ForeignField: "id", As: "project"}

var categoryLookups = []Lookup{
	{From: "door_category", LocalField: "id", ForeignField: "door_id", As: "categories", Type: CardMultiple},
	{From: "category", LocalField: "category_id", ForeignField: "id", As: "categories.category", To: "categories"},
}

type fixture struct {
	db     *DB
	sqlDB  *sql.DB
	member string
}

// newFixture opens a file backed SQLite database with foreign keys on and
// seeds it through the document API:
//
//	task 1 "write docs" 2h  project Apollo (client Acme)  member
//	task 2 "review"     5h  project Gemini (no client)
//	task 3 "deploy"     1h  no project
//
//	door 1 front: wood, steel
//	door 2 back:  steel
//	door 3 side:  none
func newFixture(t *testing.T, conf *Config) *fixture {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	sqlDB, err := sql.Open(sqlite.DriverName, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = sqlDB.ExecContext(ctx, testSchema)
	require.NoError(t, err)

	if conf == nil {
		conf = &Config{}
	}
	conf.DBType = "sqlite"

	db, err := Open(ctx, conf, sqlDB)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	f := &fixture{db: db, sqlDB: sqlDB, member: gofakeit.Name()}

	f.insert(t, "client", bson.D{{Key: "name", Value: "Acme"}})
	f.insert(t, "member", bson.D{{Key: "name", Value: f.member}, {Key: "email", Value: gofakeit.Email()}})
	f.insert(t, "project", bson.D{{Key: "name", Value: "Apollo"}, {Key: "client_id", Value: 1}})
	f.insert(t, "project", bson.D{{Key: "name", Value: "Gemini"}})

	f.insert(t, "task", bson.D{
		{Key: "title", Value: "write docs"},
		{Key: "hours", Value: 2},
		{Key: "created_at", Value: 1500000000},
		{Key: "project_id", Value: 1},
		{Key: "member_id", Value: 1},
	})
	f.insert(t, "task", bson.D{{Key: "title", Value: "review"}, {Key: "hours", Value: 5}, {Key: "project_id", Value: 2}})
	f.insert(t, "task", bson.D{{Key: "title", Value: "deploy"}, {Key: "hours", Value: 1}})

	for _, n := range []string{"front", "back", "side"} {
		f.insert(t, "door", bson.D{{Key: "name", Value: n}})
	}
	for _, n := range []string{"wood", "steel"} {
		f.insert(t, "category", bson.D{{Key: "name", Value: n}})
	}
	for _, dc := range [][2]int{{1, 1}, {1, 2}, {2, 2}} {
		f.insert(t, "door_category", bson.D{{Key: "door_id", Value: dc[0]}, {Key: "category_id", Value: dc[1]}})
	}
	return f
}

func (f *fixture) insert(t *testing.T, table string, doc bson.D) any {
	t.Helper()
	res, err := f.collection(t, table).InsertOne(context.Background(), doc)
	require.NoError(t, err)
	return res.InsertedID
}

func (f *fixture) collection(t *testing.T, name string) *Collection {
	t.Helper()
	c, err := f.db.Collection(name)
	require.NoError(t, err)
	return c
}

func (f *fixture) find(t *testing.T, table string, filter any, opts ...*FindOptions) []Document {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := f.collection(t, table).Find(ctx, filter, opts...)
	require.NoError(t, err)
	docs, err := cur.All(ctx)
	require.NoError(t, err)
	return docs
}

func field(d Document, key string) any {
	return jsn.Map(d)[key]
}
