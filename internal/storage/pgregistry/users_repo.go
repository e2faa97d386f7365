package pgregistry

import (
	"context"

	"github.com/fircargo/cargotrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, chatID int64, name string, username, phone *string) (*models.User, error) {
	u := models.User{ChatID: chatID, Name: name, Username: username, Phone: phone}
	err := s.db.QueryRow(ctx, `
INSERT INTO users (chat_id, name, username, phone, created_at)
VALUES ($1, $2, $3, $4, now())
RETURNING id, created_at
`, chatID, name, username, phone).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &u, nil
}

// GetUserByInternalID переводит короткий внутренний ID (FS0001 -> 1)
// в запись справочника. Единственная зависимость реестра от справочника.
func (s *Storage) GetUserByInternalID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `
SELECT id, chat_id, name, username, phone, created_at FROM users WHERE id = $1
`, id)
}

func (s *Storage) GetUserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return s.getUser(ctx, `
SELECT id, chat_id, name, username, phone, created_at FROM users WHERE chat_id = $1
`, chatID)
}

func (s *Storage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.ChatID, &u.Name, &u.Username, &u.Phone, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, chat_id, name, username, phone, created_at FROM users ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.ChatID, &u.Name, &u.Username, &u.Phone, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
