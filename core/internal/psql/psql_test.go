package psql

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sqlcollection/sqlcollection/core/internal/dialect"
	"github.com/sqlcollection/sqlcollection/core/internal/qcode"
	"github.com/sqlcollection/sqlcollection/core/internal/sdata"
)

type testSchema map[string][]sdata.DBColumn

func (s testSchema) Table(ctx context.Context, name, alias string, root bool) (sdata.DBTable, error) {
	cols, ok := s[name]
	if !ok {
		return sdata.DBTable{}, fmt.Errorf("%w: %s", sdata.ErrUnknownTable, name)
	}
	return sdata.DBTable{Name: name, Alias: alias, Columns: cols, IsRoot: root}, nil
}

func (s testSchema) Relations(ctx context.Context, table string) ([]sdata.DBRelation, error) {
	return nil, nil
}

var schema = testSchema{
	"task": {
		{Name: "id", Type: sdata.TypeNumber, Required: true, Key: sdata.KeyPrimary, Extra: "auto_increment"},
		{Name: "name", Type: sdata.TypeText, Required: true},
		{Name: "hours", Type: sdata.TypeNumber},
		{Name: "project_id", Type: sdata.TypeNumber, Key: sdata.KeyMulti},
	},
	"project": {
		{Name: "id", Type: sdata.TypeNumber, Required: true, Key: sdata.KeyPrimary},
		{Name: "name", Type: sdata.TypeText, Required: true},
		{Name: "client_id", Type: sdata.TypeNumber, Key: sdata.KeyMulti},
	},
	"door": {
		{Name: "id", Type: sdata.TypeNumber, Required: true, Key: sdata.KeyPrimary},
		{Name: "name", Type: sdata.TypeText},
	},
	"door_category": {
		{Name: "id", Type: sdata.TypeNumber, Required: true, Key: sdata.KeyPrimary},
		{Name: "door_id", Type: sdata.TypeNumber, Key: sdata.KeyMulti},
		{Name: "category_id", Type: sdata.TypeNumber, Key: sdata.KeyMulti},
	},
	"category": {
		{Name: "id", Type: sdata.TypeNumber, Required: true, Key: sdata.KeyPrimary},
		{Name: "name", Type: sdata.TypeText},
	},
}

var projectLookup = qcode.Lookup{From: "project", LocalField: "project_id", ForeignField: "id", As: "project"}

var categoryLookups = []qcode.Lookup{
	{From: "door_category", LocalField: "id", ForeignField: "door_id", As: "categories", Type: qcode.CardMultiple},
	{From: "category", LocalField: "category_id", ForeignField: "id", As: "categories.category", To: "categories"},
}

func newQCompiler() *qcode.Compiler {
	return qcode.NewCompiler(schema, qcode.Config{DefaultLimit: 100, MaxDepth: 3})
}

func compiler(t *testing.T, dbType string) *Compiler {
	d, err := dialect.New(dbType)
	require.NoError(t, err)
	return NewCompiler(d)
}

func TestSelectWithoutLookups(t *testing.T) {
	sel, err := newQCompiler().CompileSelect(context.Background(), "task", nil, nil, nil)
	require.NoError(t, err)

	st, err := compiler(t, "sqlite").CompileSelect(sel)
	require.NoError(t, err)

	assert.Equal(t, `SELECT "task"."id" AS "id", "task"."name" AS "name", "task"."hours" AS "hours", `+
		`"task"."project_id" AS "project_id" FROM (SELECT "task".* FROM "task" AS "task" `+
		`ORDER BY "task"."id" ASC LIMIT ? OFFSET ?) AS "task" ORDER BY "task"."id" ASC`, st.SQL)
	assert.Equal(t, []any{100, 0}, st.Args)
}

func TestSelectLimitZeroKeepsDefaultPage(t *testing.T) {
	co := newQCompiler()
	sel, err := co.CompileSelect(context.Background(), "task", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, co.SetLimit(sel, 7))
	require.NoError(t, co.SetLimit(sel, 0))

	st, err := compiler(t, "sqlite").CompileSelect(sel)
	require.NoError(t, err)
	assert.Contains(t, st.SQL, `LIMIT ? OFFSET ?`)
	assert.Equal(t, []any{100, 0}, st.Args)
}

func TestSelectPagesRootRows(t *testing.T) {
	co := newQCompiler()
	sel, err := co.CompileSelect(context.Background(), "task", []qcode.Lookup{projectLookup},
		bson.D{
			{Key: "project.name", Value: "apollo"},
			{Key: "hours", Value: bson.D{{Key: "$gt", Value: 2}}},
		}, nil)
	require.NoError(t, err)
	require.NoError(t, co.SetSort(sel, []qcode.SortKey{{Key: "project.name", Dir: -1}}))
	require.NoError(t, co.SetLimit(sel, 10))
	require.NoError(t, co.SetSkip(sel, 5))

	st, err := compiler(t, "mysql").CompileSelect(sel)
	require.NoError(t, err)

	join := " LEFT JOIN `project` AS `project` ON `task`.`project_id` = `project`.`id`"
	inner := "SELECT `task`.* FROM `task` AS `task`" + join +
		" WHERE `project`.`name` = ? AND (`task`.`hours` > ?)" +
		" ORDER BY `project`.`name` DESC, `task`.`id` ASC LIMIT ? OFFSET ?"

	assert.Equal(t, "SELECT `task`.`id` AS 'id', `task`.`name` AS 'name', `task`.`hours` AS 'hours', "+
		"`task`.`project_id` AS 'project.id', `project`.`name` AS 'project.name', "+
		"`project`.`client_id` AS 'project.client_id' FROM ("+inner+") AS `task`"+join+
		" ORDER BY `project`.`name` DESC, `task`.`id` ASC", st.SQL)
	assert.Equal(t, []any{"apollo", 2, 10, 5}, st.Args)
}

func TestSelectFilterThroughMultipleLookup(t *testing.T) {
	sel, err := newQCompiler().CompileSelect(context.Background(), "door", categoryLookups,
		bson.D{{Key: "categories.category.name", Value: "steel"}}, nil)
	require.NoError(t, err)

	st, err := compiler(t, "postgres").CompileSelect(sel)
	require.NoError(t, err)

	joins := ` LEFT JOIN "door_category" AS "categories" ON "door"."id" = "categories"."door_id"` +
		` LEFT JOIN "category" AS "categories.category" ON "categories"."category_id" = "categories.category"."id"`
	inner := `SELECT "door".* FROM "door" AS "door" WHERE "door"."id" IN ` +
		`(SELECT "door"."id" FROM "door" AS "door"` + joins + ` WHERE "categories.category"."name" = $1)` +
		` ORDER BY "door"."id" ASC LIMIT $2 OFFSET $3`

	assert.Equal(t, `SELECT "door"."id" AS "id", "door"."name" AS "name", "categories"."id" AS "categories.id", `+
		`"categories"."door_id" AS "categories.door_id", "categories"."category_id" AS "categories.category.id", `+
		`"categories.category"."name" AS "categories.category.name" FROM (`+inner+`) AS "door"`+joins+
		` WHERE "categories.category"."name" = $4 ORDER BY "door"."id" ASC`, st.SQL)
	assert.Equal(t, []any{"steel", 100, 0, "steel"}, st.Args)
}

func TestSelectNullsAndNesting(t *testing.T) {
	sel, err := newQCompiler().CompileSelect(context.Background(), "task", nil,
		bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: nil}},
			bson.D{{Key: "hours", Value: bson.D{{Key: "$ne", Value: nil}}}},
		}}}, nil)
	require.NoError(t, err)

	st, err := compiler(t, "sqlite").CompileCount(sel, false)
	require.NoError(t, err)

	assert.Equal(t, `SELECT COUNT(*) FROM (SELECT "task".* FROM "task" AS "task" `+
		`WHERE (("task"."name" IS NULL) OR (("task"."hours" IS NOT NULL)))) AS "A1"`, st.SQL)
	assert.Empty(t, st.Args)
}

func TestCountWithPaging(t *testing.T) {
	co := newQCompiler()
	sel, err := co.CompileSelect(context.Background(), "task", nil,
		bson.D{{Key: "name", Value: bson.Regex{Pattern: "^a"}}}, nil)
	require.NoError(t, err)
	require.NoError(t, co.SetLimit(sel, 2))

	st, err := compiler(t, "postgres").CompileCount(sel, true)
	require.NoError(t, err)

	assert.Equal(t, `SELECT COUNT(*) FROM (SELECT "task".* FROM "task" AS "task" WHERE "task"."name" ~ $1 `+
		`ORDER BY "task"."id" ASC LIMIT $2 OFFSET $3) AS "A1"`, st.SQL)
	assert.Equal(t, []any{"^a", 2, 0}, st.Args)
}

func TestGroupingKeepsHiddenKeys(t *testing.T) {
	co := newQCompiler()

	sel, err := co.CompileSelect(context.Background(), "door", categoryLookups, nil,
		bson.D{{Key: "name", Value: 1}, {Key: "categories.category.name", Value: 1}})
	require.NoError(t, err)

	g, err := GroupingFor(sel)
	require.NoError(t, err)
	assert.Equal(t, Grouping{Key: "id", Arrays: []Array{
		{Path: "categories", Parent: -1, Key: "categories.id"},
	}}, g)

	var got []string
	for _, c := range Columns(sel, g) {
		got = append(got, fmt.Sprintf("%s:%v", c.Alias, c.Hidden))
	}
	assert.Equal(t, []string{"id:true", "name:false", "categories.id:true",
		"categories.category.name:false"}, got)

	sel, err = co.CompileSelect(context.Background(), "door", categoryLookups, nil, bson.M{"name": 1})
	require.NoError(t, err)
	g, err = GroupingFor(sel)
	require.NoError(t, err)
	assert.Equal(t, "id", g.Key)
	assert.Empty(t, g.Arrays)
}

func TestInsert(t *testing.T) {
	co := newQCompiler()
	ins, err := co.CompileInsert(context.Background(), "task", nil,
		bson.D{{Key: "name", Value: "x"}, {Key: "hours", Value: 3}})
	require.NoError(t, err)

	st, err := compiler(t, "postgres").CompileInsert(ins)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "task" ("name", "hours") VALUES ($1, $2) RETURNING "id"`, st.SQL)
	assert.Equal(t, []any{"x", 3}, st.Args)
	assert.True(t, st.Returning)

	st, err = compiler(t, "mysql").CompileInsert(ins)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `task` (`name`, `hours`) VALUES (?, ?)", st.SQL)
	assert.False(t, st.Returning)

	door, err := schema.Table(context.Background(), "door", "door", true)
	require.NoError(t, err)

	st, err = compiler(t, "sqlite").CompileInsert(&qcode.Insert{Table: door})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "door" DEFAULT VALUES`, st.SQL)

	st, err = compiler(t, "mysql").CompileInsert(&qcode.Insert{Table: door})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `door` () VALUES ()", st.SQL)
}

func TestUpdate(t *testing.T) {
	co := newQCompiler()
	ctx := context.Background()
	set := bson.D{{Key: "$set", Value: bson.D{{Key: "name", Value: "x"}}}}

	upd, err := co.CompileUpdate(ctx, "task", []qcode.Lookup{projectLookup},
		bson.D{{Key: "project.name", Value: "apollo"}}, set)
	require.NoError(t, err)

	st, err := compiler(t, "postgres").CompileUpdate(upd)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "task" SET "name" = $1 WHERE "task"."id" IN (SELECT "task"."id" FROM "task" AS "task" `+
		`LEFT JOIN "project" AS "project" ON "task"."project_id" = "project"."id" WHERE "project"."name" = $2)`, st.SQL)
	assert.Equal(t, []any{"x", "apollo"}, st.Args)

	st, err = compiler(t, "mysql").CompileUpdate(upd)
	require.NoError(t, err)
	assert.Equal(t, "UPDATE `task` AS `task` LEFT JOIN `project` AS `project` ON `task`.`project_id` = `project`.`id` "+
		"SET `task`.`name` = ? WHERE `project`.`name` = ?", st.SQL)

	upd, err = co.CompileUpdate(ctx, "task", nil, bson.D{{Key: "id", Value: 3}}, set)
	require.NoError(t, err)

	st, err = compiler(t, "sqlite").CompileUpdate(upd)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "task" SET "name" = ? WHERE "task"."id" = ?`, st.SQL)
	assert.Equal(t, []any{"x", 3}, st.Args)
}

func TestDelete(t *testing.T) {
	co := newQCompiler()
	ctx := context.Background()

	del, err := co.CompileDelete(ctx, "task", []qcode.Lookup{projectLookup},
		bson.D{{Key: "project.name", Value: "apollo"}})
	require.NoError(t, err)

	st, err := compiler(t, "mysql").CompileDelete(del)
	require.NoError(t, err)
	assert.Equal(t, "DELETE `task` FROM `task` AS `task` LEFT JOIN `project` AS `project` "+
		"ON `task`.`project_id` = `project`.`id` WHERE `project`.`name` = ?", st.SQL)

	st, err = compiler(t, "sqlite").CompileDelete(del)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "task" WHERE "task"."id" IN (SELECT "task"."id" FROM "task" AS "task" `+
		`LEFT JOIN "project" AS "project" ON "task"."project_id" = "project"."id" WHERE "project"."name" = ?)`, st.SQL)

	del, err = co.CompileDelete(ctx, "task", nil, bson.D{{Key: "id", Value: 3}})
	require.NoError(t, err)

	st, err = compiler(t, "postgres").CompileDelete(del)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "task" WHERE "task"."id" = $1`, st.SQL)
	assert.Equal(t, []any{3}, st.Args)
}
