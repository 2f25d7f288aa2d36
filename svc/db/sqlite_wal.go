package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"pinbin/svc/util"
)

const (
	defaultCheckpointInterval = 5 * time.Minute
	defaultEscalatePages      = 1000
	integrityCheckTimeout     = 30 * time.Second
)

// StartWALMaintenance checkpoints the WAL on a fixed interval so the log
// never grows without bound between restarts. A final checkpoint runs on
// quit so shutdown leaves the main database file current.
func StartWALMaintenance(db *sql.DB, interval time.Duration, escalatePages int, quit chan struct{}) {
	if interval <= 0 {
		interval = defaultCheckpointInterval
	}
	if escalatePages <= 0 {
		escalatePages = defaultEscalatePages
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := checkpointWAL(db, escalatePages); err != nil {
				util.Error().Err(err).Msg("wal checkpoint failed")
			}
		case <-quit:
			if err := checkpointWAL(db, escalatePages); err != nil {
				util.Error().Err(err).Msg("wal checkpoint on shutdown failed")
			}
			return
		}
	}
}

// checkpointWAL runs a PASSIVE checkpoint and escalates to TRUNCATE when the
// log has grown past escalatePages or readers blocked part of it. Every
// checkpoint ends with an integrity check: a corrupt database must surface
// here, not on the next read.
func checkpointWAL(db *sql.DB, escalatePages int) error {
	start := time.Now()
	var busy, logPages, moved int
	err := db.QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logPages, &moved)
	if err != nil {
		return errors.Wrap(err, "passive checkpoint")
	}
	if logPages > escalatePages || busy > 0 {
		if err := db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logPages, &moved); err != nil {
			return errors.Wrap(err, "truncate checkpoint")
		}
		util.Info().
			Int("busy", busy).
			Int("log_pages", logPages).
			Int("checkpointed", moved).
			Msg("wal checkpoint escalated to truncate")
	}
	if err := checkIntegrity(db); err != nil {
		return err
	}
	util.Debug().
		Int("log_pages", logPages).
		Int("checkpointed", moved).
		Dur("duration", time.Since(start)).
		Msg("wal checkpoint done")
	return nil
}

func checkIntegrity(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), integrityCheckTimeout)
	defer cancel()
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return errors.Wrap(err, "integrity check")
	}
	if result != "ok" {
		return errors.Errorf("integrity check returned %q", result)
	}
	return nil
}
