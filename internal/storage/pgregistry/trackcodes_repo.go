package pgregistry

import (
	"context"

	"github.com/fircargo/cargotrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// UpsertEntry — одна строка массового апсерта. OwnerChatID == nil означает
// "владелец не задан", а не "сбросить владельца": сброс делается только
// самолечением (ClearOwner) или явной отвязкой (UnbindOwner).
type UpsertEntry struct {
	Code        string
	Status      string
	OwnerChatID *int64
}

// UpsertOutcome описывает итог апсерта одной строки: итоговый владелец
// (после COALESCE со старым значением) и признак вставки.
type UpsertOutcome struct {
	Code        string
	Status      string
	OwnerChatID *int64
	Created     bool
}

func (s *Storage) GetByCode(ctx context.Context, code string) (*models.TrackCode, error) {
	var t models.TrackCode
	err := s.db.QueryRow(ctx, `
SELECT id, code, status, owner_chat_id, created_at, updated_at
FROM track_codes
WHERE code = $1
`, code).Scan(&t.ID, &t.Code, &t.Status, &t.OwnerChatID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select track code")
	}
	return &t, nil
}

// CheckOrRegister — клиентская идемпотентная проверка-регистрация.
// Строка читается с SELECT ... FOR UPDATE, чтобы две одновременные первые
// отправки одного кода не вставили дубль. Статус этим путём не меняется.
func (s *Storage) CheckOrRegister(ctx context.Context, code string, chatID int64) (string, error) {
	status, err := s.checkOrRegisterOnce(ctx, code, chatID)
	if err == nil {
		return status, nil
	}
	if !isUniqueViolation(err) {
		return "", err
	}

	// Вставка проиграла гонку несмотря на блокировку. Повторяем один раз
	// как чтение-привязку; повторный промах — ошибка логики, наружу.
	status, err = s.checkOrRegisterOnce(ctx, code, chatID)
	if err != nil {
		return "", errors.Wrap(err, "check or register retry")
	}
	return status, nil
}

func (s *Storage) checkOrRegisterOnce(ctx context.Context, code string, chatID int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var owner *int64
	err = tx.QueryRow(ctx, `
SELECT status, owner_chat_id FROM track_codes WHERE code = $1 FOR UPDATE
`, code).Scan(&status, &owner)

	switch {
	case err == nil:
		// Привязываем только первого претендента, статус не трогаем.
		if owner == nil {
			if _, err := tx.Exec(ctx, `
UPDATE track_codes SET owner_chat_id = $2, updated_at = now() WHERE code = $1
`, code, chatID); err != nil {
				return "", errors.Wrap(err, "bind owner")
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return "", errors.Wrap(err, "commit tx")
		}
		return status, nil

	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
INSERT INTO track_codes (code, status, owner_chat_id, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
`, code, models.StatusOutOfStock, chatID); err != nil {
			return "", errors.Wrap(err, "insert track code")
		}
		if err := tx.Commit(ctx); err != nil {
			return "", errors.Wrap(err, "commit tx")
		}
		return models.StatusOutOfStock, nil

	default:
		return "", errors.Wrap(err, "select for update")
	}
}

// BulkUpsert применяет пачку (код, статус, владелец?) одной транзакцией.
// Каждая строка пишется атомарным INSERT ... ON CONFLICT DO UPDATE, поэтому
// окна "проверили-вставили" нет. Существующий владелец сохраняется, если
// запись пачки владельца не задаёт (COALESCE).
func (s *Storage) BulkUpsert(ctx context.Context, entries []UpsertEntry) ([]UpsertOutcome, error) {
	if len(entries) == 0 {
		return []UpsertOutcome{}, nil
	}
	entries = dedupLastWins(entries)

	ctx, cancel := context.WithTimeout(ctx, s.bulkTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out := make([]UpsertOutcome, 0, len(entries))
	for _, e := range entries {
		var created bool
		var owner *int64
		err := tx.QueryRow(ctx, `
INSERT INTO track_codes (code, status, owner_chat_id, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (code) DO UPDATE SET
  status = EXCLUDED.status,
  owner_chat_id = COALESCE(EXCLUDED.owner_chat_id, track_codes.owner_chat_id),
  updated_at = now()
RETURNING (xmax = 0), owner_chat_id
`, e.Code, e.Status, e.OwnerChatID).Scan(&created, &owner)
		if err != nil {
			return nil, errors.Wrap(err, "upsert track code")
		}
		out = append(out, UpsertOutcome{Code: e.Code, Status: e.Status, OwnerChatID: owner, Created: created})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return out, nil
}

// UpsertSingle — точечный апсерт с той же семантикой, что у одной строки
// пачки: статус перезаписывается, nil-владелец сохраняет текущего.
func (s *Storage) UpsertSingle(ctx context.Context, e UpsertEntry) (UpsertOutcome, error) {
	out, err := s.BulkUpsert(ctx, []UpsertEntry{e})
	if err != nil {
		return UpsertOutcome{}, err
	}
	return out[0], nil
}

// BulkAssignOwner привязывает владельца к списку кодов. Неизвестные коды не
// теряются: для них создаётся строка со статусом out_of_stock и этим
// владельцем. В отличие от BulkUpsert владелец здесь перезаписывается —
// это явное действие персонала.
func (s *Storage) BulkAssignOwner(ctx context.Context, codes []string, chatID int64) (models.AssignSummary, error) {
	var sum models.AssignSummary
	if len(codes) == 0 {
		return sum, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.bulkTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return sum, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, code := range codes {
		var created bool
		err := tx.QueryRow(ctx, `
INSERT INTO track_codes (code, status, owner_chat_id, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (code) DO UPDATE SET
  owner_chat_id = EXCLUDED.owner_chat_id,
  updated_at = now()
RETURNING (xmax = 0)
`, code, models.StatusOutOfStock, chatID).Scan(&created)
		if err != nil {
			return models.AssignSummary{}, errors.Wrap(err, "assign owner")
		}
		if created {
			sum.Created++
		} else {
			sum.Assigned++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.AssignSummary{}, errors.Wrap(err, "commit tx")
	}
	return sum, nil
}

func (s *Storage) BulkDelete(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM track_codes WHERE code = ANY($1)`, codes)
	if err != nil {
		return 0, errors.Wrap(err, "bulk delete")
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) DeleteByStatus(ctx context.Context, status string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM track_codes WHERE status = $1`, status)
	if err != nil {
		return 0, errors.Wrap(err, "delete by status")
	}
	return tag.RowsAffected(), nil
}

// ClearOwner — самолечение диспетчера уведомлений: снимает привязку, только
// если владелец всё ещё тот, до кого не достучались. Уведомление едет через
// очередь, и за это время персонал мог перепривязать код другому клиенту —
// свежую привязку сброс не трогает. Статус не меняется.
func (s *Storage) ClearOwner(ctx context.Context, code string, ownerChatID int64) error {
	_, err := s.db.Exec(ctx, `
UPDATE track_codes SET owner_chat_id = NULL, updated_at = now()
WHERE code = $1 AND owner_chat_id = $2
`, code, ownerChatID)
	return errors.Wrap(err, "clear owner")
}

// UnbindOwner — безусловная явная админ-отвязка владельца.
func (s *Storage) UnbindOwner(ctx context.Context, code string) error {
	_, err := s.db.Exec(ctx, `
UPDATE track_codes SET owner_chat_id = NULL, updated_at = now() WHERE code = $1
`, code)
	return errors.Wrap(err, "unbind owner")
}

func (s *Storage) ListByOwner(ctx context.Context, chatID int64) ([]*models.TrackCode, error) {
	return s.list(ctx, `
SELECT id, code, status, owner_chat_id, created_at, updated_at
FROM track_codes
WHERE owner_chat_id = $1
ORDER BY id
`, chatID)
}

func (s *Storage) ListAll(ctx context.Context) ([]*models.TrackCode, error) {
	return s.list(ctx, `
SELECT id, code, status, owner_chat_id, created_at, updated_at
FROM track_codes
ORDER BY id
`)
}

func (s *Storage) list(ctx context.Context, query string, args ...any) ([]*models.TrackCode, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select track codes")
	}
	defer rows.Close()

	out := make([]*models.TrackCode, 0)
	for rows.Next() {
		var t models.TrackCode
		if err := rows.Scan(&t.ID, &t.Code, &t.Status, &t.OwnerChatID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan track code")
		}
		out = append(out, &t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// dedupLastWins убирает дубли кода внутри пачки, побеждает последняя запись.
func dedupLastWins(entries []UpsertEntry) []UpsertEntry {
	uniq := make([]UpsertEntry, 0, len(entries))
	idx := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := idx[e.Code]; ok {
			uniq[i] = e
			continue
		}
		idx[e.Code] = len(uniq)
		uniq = append(uniq, e)
	}
	return uniq
}
