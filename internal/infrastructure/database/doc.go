// Package database provides the SQLite store behind the link history.
//
// It owns the connection (single writer, optional WAL, busy timeout) and a
// forward-only migration runner fed from SQL files embedded by the
// top-level migrations package.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with mode 0600.
package database
