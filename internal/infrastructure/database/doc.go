// Package database provides SQLite connectivity for the Gray Logic Gateway.
//
// The gateway keeps four tables: users, placements, things and audit_logs.
// Schema files live in the top-level migrations package and are passed to
// Migrate as an fs.FS:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive-only. New columns must be NULLABLE or carry a
// DEFAULT, and each .up.sql has a matching .down.sql.
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
package database
