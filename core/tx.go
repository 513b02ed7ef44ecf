package core

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a transaction scoped to a Transaction callback
type Tx struct {
	db *DB
	gj *engine
	tx *sql.Tx
}

// Collection returns a collection whose statements run in the transaction.
// Cursors opened in a transaction read all their rows on first use.
func (tx *Tx) Collection(name string) (*Collection, error) {
	if _, ok := tx.gj.colls[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return &Collection{db: tx.db, name: name, tx: tx}, nil
}

// Transaction runs fn in a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics.
func (g *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	gj := g.engine()

	sqlTx, err := gj.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		err = sqlTx.Commit()
	}()

	err = fn(&Tx{db: g, gj: gj, tx: sqlTx})
	return
}
