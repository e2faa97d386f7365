package pgregistry

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS track_codes (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL,
  status TEXT NOT NULL,
  owner_chat_id BIGINT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (code)
)`,
		`CREATE INDEX IF NOT EXISTS idx_track_codes_owner_chat_id ON track_codes(owner_chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_track_codes_status ON track_codes(status)`,
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  chat_id BIGINT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  username TEXT NULL,
  phone TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_chat_id ON users(chat_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
