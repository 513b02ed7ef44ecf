package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func countTasks(t *testing.T, f *fixture) int64 {
	t.Helper()
	cur, err := f.collection(t, "task").Find(context.Background(), nil)
	require.NoError(t, err)
	n, err := cur.Count(context.Background(), false)
	require.NoError(t, err)
	return n
}

func TestTransactionCommit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.db.Transaction(ctx, func(tx *Tx) error {
		tasks, err := tx.Collection("task")
		if err != nil {
			return err
		}
		if _, err := tasks.InsertOne(ctx, bson.D{{Key: "title", Value: "in tx"}}); err != nil {
			return err
		}

		cur, err := tasks.Find(ctx, bson.D{{Key: "title", Value: "in tx"}})
		if err != nil {
			return err
		}
		docs, err := cur.All(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, docs, 1)

		_, err = tasks.UpdateMany(ctx, bson.D{{Key: "title", Value: "in tx"}},
			bson.D{{Key: "$set", Value: bson.D{{Key: "hours", Value: 3}}}})
		return err
	})
	require.NoError(t, err)

	docs := f.find(t, "task", bson.D{{Key: "title", Value: "in tx"}})
	require.Len(t, docs, 1)
	assert.Equal(t, float64(3), field(docs[0], "hours"))
}

func TestTransactionRollback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	errStop := errors.New("stop")

	err := f.db.Transaction(ctx, func(tx *Tx) error {
		tasks, err := tx.Collection("task")
		if err != nil {
			return err
		}
		if _, err := tasks.DeleteMany(ctx, bson.D{{Key: "hours", Value: bson.D{{Key: "$gte", Value: 0}}}}); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, int64(3), countTasks(t, f))

	assert.Panics(t, func() {
		_ = f.db.Transaction(ctx, func(tx *Tx) error {
			tasks, err := tx.Collection("task")
			if err != nil {
				return err
			}
			if _, err := tasks.InsertOne(ctx, bson.D{{Key: "title", Value: "lost"}}); err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Equal(t, int64(3), countTasks(t, f))

	err = f.db.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Collection("nope")
		return err
	})
	assert.ErrorIs(t, err, ErrUnknownTable)
}
