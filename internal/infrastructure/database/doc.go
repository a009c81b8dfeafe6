// Package database provides SQLite access for VanTrack Core.
//
// The database holds only the session cache (persisted cloud login cookies),
// letting a restarted daemon resume a still-valid session instead of logging
// in again. Device state and telemetry are kept in memory and never written
// here.
//
// # Features
//
//   - WAL mode for concurrent read access
//   - Embedded SQL migrations applied on startup
//   - Health checks for monitoring
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
