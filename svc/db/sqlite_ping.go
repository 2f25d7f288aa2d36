package db

import (
	"context"
)

// Ping reports whether the store can serve queries right now. It goes
// through the circuit breaker on purpose: a tripped breaker means the store
// is down for callers even when the file underneath is fine.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var one int
	err := s.db.QueryRowContext(queryCtx, "SELECT 1").Scan(&one)
	s.recordError(err)
	return err
}
