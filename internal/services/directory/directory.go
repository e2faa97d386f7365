package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fircargo/cargotrack/internal/cache"
	"github.com/fircargo/cargotrack/internal/models"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
	"github.com/pkg/errors"
)

// ErrNotFound — внутренний ID не числится в справочнике.
var ErrNotFound = errors.New("user not found")

type Storage interface {
	GetUserByInternalID(ctx context.Context, id int64) (*models.User, error)
}

// Service резолвит внутренние короткие ID персонала (FS0001) в записи
// справочника. Массовый импорт дёргает резолв на каждую аннотированную
// строку, поэтому ответы кэшируются.
type Service struct {
	storage Storage
	cache   cache.BytesCache
	ttl     time.Duration
}

func New(storage Storage, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{storage: storage, cache: c, ttl: ttl}
}

func (s *Service) Resolve(ctx context.Context, internalID int64) (*models.User, error) {
	key := resolveKey(internalID)

	if s.cache != nil && s.ttl > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var u models.User
			if json.Unmarshal(b, &u) == nil {
				return &u, nil
			}
		}
	}

	u, err := s.storage.GetUserByInternalID(ctx, internalID)
	if errors.Is(err, pgregistry.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		b, _ := json.Marshal(u)
		_ = s.cache.Set(ctx, key, b, s.ttl)
	}
	return u, nil
}

func resolveKey(internalID int64) string {
	return fmt.Sprintf("user:%d:resolve", internalID)
}
