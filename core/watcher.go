package core

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"
)

// initDBWatcher starts polling the database for added or removed tables
func (g *DB) initDBWatcher() error {
	gj := g.engine()

	// no schema polling in production
	if gj.conf.Production {
		return nil
	}

	ps := gj.conf.DBSchemaPollDuration

	switch {
	case ps < (1 * time.Second):
		return nil

	case ps < (5 * time.Second):
		ps = 10 * time.Second
	}

	go func() {
		g.startDBWatcher(ps)
	}()
	return nil
}

// startDBWatcher reloads the collections when the table list changes
func (g *DB) startDBWatcher(ps time.Duration) {
	ticker := time.NewTicker(ps)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
		}

		gj := g.engine()
		ctx, cancel := context.WithTimeout(context.Background(), ps)

		tables, err := gj.catalog.Tables(ctx)
		if err != nil {
			cancel()
			gj.log.Warn("schema poll failed", zap.Error(err))
			continue
		}

		if len(gj.conf.Tables) != 0 {
			tables = slices.DeleteFunc(tables, func(t string) bool {
				return !slices.Contains(gj.conf.Tables, t)
			})
		}
		slices.Sort(tables)

		if slices.Equal(tables, gj.tables) {
			cancel()
			continue
		}

		gj.log.Info("database change detected, reloading collections")

		if err := g.Reload(ctx); err != nil {
			gj.log.Error("reload failed", zap.Error(err))
		}
		cancel()
	}
}
