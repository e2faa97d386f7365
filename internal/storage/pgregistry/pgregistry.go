package pgregistry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const defaultBulkTimeout = 30 * time.Second

// ErrNotFound возвращается точечными выборками, когда строки нет.
var ErrNotFound = errors.New("not found")

type Storage struct {
	db          *pgxpool.Pool
	bulkTimeout time.Duration
}

func New(connString string, bulkTimeout time.Duration) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	if bulkTimeout <= 0 {
		bulkTimeout = defaultBulkTimeout
	}

	s := &Storage{db: db, bulkTimeout: bulkTimeout}
	if err := s.initSchema(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
