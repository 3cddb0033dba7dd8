package store

import "context"

// JournalMode reports the SQLite journal mode of a pooled connection.
func (s *SQL) JournalMode(ctx context.Context) (string, error) {
	var mode string
	err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode)
	return mode, err
}
