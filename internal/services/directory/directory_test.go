package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fircargo/cargotrack/internal/models"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
)

type fakeStorage struct {
	users map[int64]*models.User
	calls int
	err   error
}

func (f *fakeStorage) GetUserByInternalID(ctx context.Context, id int64) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, pgregistry.ErrNotFound
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.data[key]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func TestResolve(t *testing.T) {
	st := &fakeStorage{users: map[int64]*models.User{
		42: {ID: 42, ChatID: 777, Name: "Иван"},
	}}
	s := New(st, newMemCache(), 5*time.Minute)

	u, err := s.Resolve(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(777), u.ChatID)
}

func TestResolve_NotFound(t *testing.T) {
	s := New(&fakeStorage{}, newMemCache(), 5*time.Minute)

	_, err := s.Resolve(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_SecondHitServedFromCache(t *testing.T) {
	st := &fakeStorage{users: map[int64]*models.User{
		42: {ID: 42, ChatID: 777, Name: "Иван"},
	}}
	s := New(st, newMemCache(), 5*time.Minute)

	_, err := s.Resolve(context.Background(), 42)
	require.NoError(t, err)

	u, err := s.Resolve(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(777), u.ChatID)
	require.Equal(t, 1, st.calls)
}

func TestResolve_NilCacheGoesToStorage(t *testing.T) {
	st := &fakeStorage{users: map[int64]*models.User{
		42: {ID: 42, ChatID: 777},
	}}
	s := New(st, nil, 0)

	for i := 0; i < 2; i++ {
		_, err := s.Resolve(context.Background(), 42)
		require.NoError(t, err)
	}
	require.Equal(t, 2, st.calls)
}
