package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/config"
	"github.com/dieseltech/stacks/internal/storage"
)

// openStorage opens the pattern/history database at the configured path and
// brings its schema up to date.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("could not open the database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, common.NewUserError(fmt.Sprintf("could not upgrade the database at %s", dbPath), err)
	}

	return store, nil
}
