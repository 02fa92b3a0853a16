// Package database provides the SQLite connection used by the sqlite
// entity state backend.
//
// It manages:
//   - opening the database file with WAL mode and a busy timeout
//   - applying embedded schema migrations in version order
//   - health checks for the bridge health report
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql, with an
// optional matching .down.sql.
package database
