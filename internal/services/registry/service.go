package registry

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/internal/models"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
)

const maxBulkEntries = 10_000

type Repository interface {
	GetByCode(ctx context.Context, code string) (*models.TrackCode, error)
	CheckOrRegister(ctx context.Context, code string, chatID int64) (string, error)
	BulkUpsert(ctx context.Context, entries []pgregistry.UpsertEntry) ([]pgregistry.UpsertOutcome, error)
	BulkAssignOwner(ctx context.Context, codes []string, chatID int64) (models.AssignSummary, error)
	BulkDelete(ctx context.Context, codes []string) (int64, error)
	DeleteByStatus(ctx context.Context, status string) (int64, error)
	UnbindOwner(ctx context.Context, code string) error
	ListByOwner(ctx context.Context, chatID int64) ([]*models.TrackCode, error)
	ListAll(ctx context.Context) ([]*models.TrackCode, error)
}

type Directory interface {
	Resolve(ctx context.Context, internalID int64) (*models.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, code string, chatID int64, status string) bool
}

// Service — staff- и клиентские операции над реестром трек-кодов.
// Мутации идут через Repository одной транзакцией, уведомления — после
// коммита и только best-effort: их исход не влияет на счётчики ответа.
type Service struct {
	repo      Repository
	directory Directory
	notifier  Notifier
}

func New(repo Repository, directory Directory, notifier Notifier) *Service {
	return &Service{repo: repo, directory: directory, notifier: notifier}
}

// ApplyStatus — массовый импорт/перевод статуса: апсерт всех кодов пачки в
// один целевой статус и уведомление владельцев. Неизвестный внутренний ID
// не валит пачку: такая запись идёт без владельца.
func (s *Service) ApplyStatus(ctx context.Context, entries []models.BulkEntry, status string) (models.BulkSummary, error) {
	if status == "" {
		return models.BulkSummary{}, errors.New("status is required")
	}
	if len(entries) == 0 {
		return models.BulkSummary{}, nil
	}
	if len(entries) > maxBulkEntries {
		return models.BulkSummary{}, errors.Errorf("too many entries (max %d)", maxBulkEntries)
	}

	norm := make([]models.BulkEntry, 0, len(entries))
	for _, e := range entries {
		code := strings.ToUpper(strings.TrimSpace(e.Code))
		if code == "" {
			return models.BulkSummary{}, errors.New("entry code is required")
		}
		norm = append(norm, models.BulkEntry{Code: code, InternalID: e.InternalID})
	}
	clean := lo.UniqBy(norm, func(e models.BulkEntry) string { return e.Code })

	upserts := make([]pgregistry.UpsertEntry, 0, len(clean))
	for _, e := range clean {
		up := pgregistry.UpsertEntry{Code: e.Code, Status: status}
		if e.InternalID != nil {
			user, err := s.directory.Resolve(ctx, *e.InternalID)
			if err != nil {
				log.
					WithFields(log.Fields{"code": up.Code, "internal_id": *e.InternalID}).
					Warnf("owner resolve failed, entry goes unowned: %v", err)
			} else {
				up.OwnerChatID = &user.ChatID
			}
		}
		upserts = append(upserts, up)
	}

	outcomes, err := s.repo.BulkUpsert(ctx, upserts)
	if err != nil {
		return models.BulkSummary{}, err
	}

	sum := models.BulkSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Created {
			sum.Created++
		} else {
			sum.Updated++
		}
	}

	// Ровно одно уведомление на код с владельцем. Исход доставки на
	// счётчики не влияет.
	for _, o := range outcomes {
		if o.OwnerChatID != nil {
			s.notifier.Notify(ctx, o.Code, *o.OwnerChatID, status)
		}
	}

	return sum, nil
}

// AssignOwner массово привязывает коды к клиенту по внутреннему ID.
// Здесь нерезолвящийся ID — ошибка: персонал явно назвал получателя.
// Отсутствующие коды не теряются, для них создаётся строка out_of_stock.
func (s *Service) AssignOwner(ctx context.Context, codes []string, internalID int64) (models.AssignSummary, error) {
	user, err := s.directory.Resolve(ctx, internalID)
	if err != nil {
		return models.AssignSummary{}, errors.Wrapf(err, "resolve internal id %d", internalID)
	}

	clean := normalizeCodes(codes)
	if len(clean) == 0 {
		return models.AssignSummary{}, nil
	}
	if len(clean) > maxBulkEntries {
		return models.AssignSummary{}, errors.Errorf("too many codes (max %d)", maxBulkEntries)
	}

	return s.repo.BulkAssignOwner(ctx, clean, user.ChatID)
}

// CheckOrRegister — клиентский путь "проверь или зарегистрируй".
// Идемпотентен: статус не меняется никогда, владелец привязывается только
// если его ещё нет.
func (s *Service) CheckOrRegister(ctx context.Context, code string, chatID int64) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", errors.New("code is required")
	}
	if chatID == 0 {
		return "", errors.New("chat id is required")
	}
	return s.repo.CheckOrRegister(ctx, code, chatID)
}

func (s *Service) GetCode(ctx context.Context, code string) (*models.TrackCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errors.New("code is required")
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) DeleteCodes(ctx context.Context, codes []string) (int64, error) {
	return s.repo.BulkDelete(ctx, normalizeCodes(codes))
}

func (s *Service) PurgeByStatus(ctx context.Context, status string) (int64, error) {
	if status == "" {
		return 0, errors.New("status is required")
	}
	return s.repo.DeleteByStatus(ctx, status)
}

// UnbindCode — явная админ-отвязка владельца.
func (s *Service) UnbindCode(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return errors.New("code is required")
	}
	return s.repo.UnbindOwner(ctx, code)
}

func (s *Service) ListAll(ctx context.Context) ([]*models.TrackCode, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByOwner(ctx context.Context, chatID int64) ([]*models.TrackCode, error) {
	if chatID == 0 {
		return nil, errors.New("chat id is required")
	}
	return s.repo.ListByOwner(ctx, chatID)
}

func normalizeCodes(codes []string) []string {
	clean := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		clean = append(clean, c)
	}
	return lo.Uniq(clean)
}
