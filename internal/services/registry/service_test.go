package registry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/fircargo/cargotrack/internal/models"
	"github.com/fircargo/cargotrack/internal/services/directory"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
)

type fakeRepo struct {
	upsertIn  []pgregistry.UpsertEntry
	upsertOut []pgregistry.UpsertOutcome
	upsertErr error

	assignCodes []string
	assignChat  int64
	assignOut   models.AssignSummary
	assignErr   error

	checkCode   string
	checkChat   int64
	checkStatus string
	checkErr    error

	deletedCodes []string
	deletedN     int64

	purgedStatus string
	purgedN      int64

	clearedCode string

	listOwnerChat int64
	listOut       []*models.TrackCode
}

func (f *fakeRepo) GetByCode(ctx context.Context, code string) (*models.TrackCode, error) {
	return nil, pgregistry.ErrNotFound
}
func (f *fakeRepo) CheckOrRegister(ctx context.Context, code string, chatID int64) (string, error) {
	f.checkCode, f.checkChat = code, chatID
	return f.checkStatus, f.checkErr
}
func (f *fakeRepo) BulkUpsert(ctx context.Context, entries []pgregistry.UpsertEntry) ([]pgregistry.UpsertOutcome, error) {
	f.upsertIn = entries
	return f.upsertOut, f.upsertErr
}
func (f *fakeRepo) BulkAssignOwner(ctx context.Context, codes []string, chatID int64) (models.AssignSummary, error) {
	f.assignCodes, f.assignChat = codes, chatID
	return f.assignOut, f.assignErr
}
func (f *fakeRepo) BulkDelete(ctx context.Context, codes []string) (int64, error) {
	f.deletedCodes = codes
	return f.deletedN, nil
}
func (f *fakeRepo) DeleteByStatus(ctx context.Context, status string) (int64, error) {
	f.purgedStatus = status
	return f.purgedN, nil
}
func (f *fakeRepo) UnbindOwner(ctx context.Context, code string) error {
	f.clearedCode = code
	return nil
}
func (f *fakeRepo) ListByOwner(ctx context.Context, chatID int64) ([]*models.TrackCode, error) {
	f.listOwnerChat = chatID
	return f.listOut, nil
}
func (f *fakeRepo) ListAll(ctx context.Context) ([]*models.TrackCode, error) {
	return f.listOut, nil
}

type fakeDirectory struct {
	users map[int64]*models.User
	err   error
}

func (f *fakeDirectory) Resolve(ctx context.Context, internalID int64) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[internalID]; ok {
		return u, nil
	}
	return nil, directory.ErrNotFound
}

type notifyCall struct {
	code   string
	chatID int64
	status string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) Notify(ctx context.Context, code string, chatID int64, status string) bool {
	f.calls = append(f.calls, notifyCall{code: code, chatID: chatID, status: status})
	return true
}

func i64(v int64) *int64 { return &v }

func TestApplyStatus_EmptyInputIsNoop(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	sum, err := s.ApplyStatus(context.Background(), nil, models.StatusInStock)
	require.NoError(t, err)
	require.Equal(t, models.BulkSummary{}, sum)
	require.Nil(t, r.upsertIn) // до репозитория не дошли
}

func TestApplyStatus_Validate(t *testing.T) {
	s := New(&fakeRepo{}, &fakeDirectory{}, &fakeNotifier{})

	_, err := s.ApplyStatus(context.Background(), []models.BulkEntry{{Code: "A"}}, "")
	require.Error(t, err)

	_, err = s.ApplyStatus(context.Background(), []models.BulkEntry{{Code: "  "}}, models.StatusInStock)
	require.Error(t, err)

	many := make([]models.BulkEntry, maxBulkEntries+1)
	for i := range many {
		many[i] = models.BulkEntry{Code: "A"}
	}
	_, err = s.ApplyStatus(context.Background(), many, models.StatusInStock)
	require.Error(t, err)
}

func TestApplyStatus_DedupFirstWinsAndUppercase(t *testing.T) {
	r := &fakeRepo{upsertOut: []pgregistry.UpsertOutcome{}}
	s := New(r, &fakeDirectory{users: map[int64]*models.User{}}, &fakeNotifier{})

	_, err := s.ApplyStatus(context.Background(), []models.BulkEntry{
		{Code: "aaa111"},
		{Code: "AAA111", InternalID: i64(5)}, // дубль, проигрывает первому
		{Code: "bbb222"},
	}, models.StatusInStock)
	require.NoError(t, err)
	require.Len(t, r.upsertIn, 2)
	require.Equal(t, "AAA111", r.upsertIn[0].Code)
	require.Nil(t, r.upsertIn[0].OwnerChatID)
	require.Equal(t, "BBB222", r.upsertIn[1].Code)
}

func TestApplyStatus_UnresolvableOwnerIsNotFatal(t *testing.T) {
	r := &fakeRepo{upsertOut: []pgregistry.UpsertOutcome{}}
	d := &fakeDirectory{users: map[int64]*models.User{
		1: {ID: 1, ChatID: 111},
	}}
	s := New(r, d, &fakeNotifier{})

	_, err := s.ApplyStatus(context.Background(), []models.BulkEntry{
		{Code: "AAA", InternalID: i64(1)},
		{Code: "BBB", InternalID: i64(99)}, // нет в справочнике
	}, models.StatusArrived)
	require.NoError(t, err)
	require.Len(t, r.upsertIn, 2)
	require.NotNil(t, r.upsertIn[0].OwnerChatID)
	require.Equal(t, int64(111), *r.upsertIn[0].OwnerChatID)
	require.Nil(t, r.upsertIn[1].OwnerChatID)
}

func TestApplyStatus_CountsAndNotifications(t *testing.T) {
	r := &fakeRepo{upsertOut: []pgregistry.UpsertOutcome{
		{Code: "AAA", Status: models.StatusInStock, OwnerChatID: i64(111), Created: false},
		{Code: "BBB", Status: models.StatusInStock, OwnerChatID: nil, Created: true},
		{Code: "CCC", Status: models.StatusInStock, OwnerChatID: i64(222), Created: true},
	}}
	n := &fakeNotifier{}
	s := New(r, &fakeDirectory{}, n)

	sum, err := s.ApplyStatus(context.Background(), []models.BulkEntry{
		{Code: "AAA"}, {Code: "BBB"}, {Code: "CCC"},
	}, models.StatusInStock)
	require.NoError(t, err)
	require.Equal(t, models.BulkSummary{Created: 2, Updated: 1, Total: 3}, sum)

	// Ровно одно уведомление на код с владельцем, без владельца — ни одного.
	require.Len(t, n.calls, 2)
	require.Equal(t, notifyCall{code: "AAA", chatID: 111, status: models.StatusInStock}, n.calls[0])
	require.Equal(t, notifyCall{code: "CCC", chatID: 222, status: models.StatusInStock}, n.calls[1])
}

func TestApplyStatus_RepoErrorStopsBeforeNotifications(t *testing.T) {
	want := errors.New("db down")
	r := &fakeRepo{upsertErr: want}
	n := &fakeNotifier{}
	s := New(r, &fakeDirectory{}, n)

	_, err := s.ApplyStatus(context.Background(), []models.BulkEntry{{Code: "AAA"}}, models.StatusShipped)
	require.ErrorIs(t, err, want)
	require.Empty(t, n.calls)
}

func TestAssignOwner_ResolveFailureIsFatal(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	_, err := s.AssignOwner(context.Background(), []string{"AAA"}, 42)
	require.Error(t, err)
	require.ErrorIs(t, err, directory.ErrNotFound)
	require.Nil(t, r.assignCodes)
}

func TestAssignOwner_NormalizesAndDelegates(t *testing.T) {
	r := &fakeRepo{assignOut: models.AssignSummary{Assigned: 1, Created: 1}}
	d := &fakeDirectory{users: map[int64]*models.User{42: {ID: 42, ChatID: 999}}}
	s := New(r, d, &fakeNotifier{})

	sum, err := s.AssignOwner(context.Background(), []string{" aaa ", "AAA", "bbb", ""}, 42)
	require.NoError(t, err)
	require.Equal(t, models.AssignSummary{Assigned: 1, Created: 1}, sum)
	require.Equal(t, []string{"AAA", "BBB"}, r.assignCodes)
	require.Equal(t, int64(999), r.assignChat)
}

func TestAssignOwner_NoCodesIsNoop(t *testing.T) {
	r := &fakeRepo{}
	d := &fakeDirectory{users: map[int64]*models.User{42: {ID: 42, ChatID: 999}}}
	s := New(r, d, &fakeNotifier{})

	sum, err := s.AssignOwner(context.Background(), []string{"  "}, 42)
	require.NoError(t, err)
	require.Equal(t, models.AssignSummary{}, sum)
	require.Nil(t, r.assignCodes)
}

func TestCheckOrRegister_NormalizesAndDelegates(t *testing.T) {
	r := &fakeRepo{checkStatus: models.StatusInStock}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	status, err := s.CheckOrRegister(context.Background(), " aaa111222 ", 777)
	require.NoError(t, err)
	require.Equal(t, models.StatusInStock, status)
	require.Equal(t, "AAA111222", r.checkCode)
	require.Equal(t, int64(777), r.checkChat)
}

func TestCheckOrRegister_Validate(t *testing.T) {
	s := New(&fakeRepo{}, &fakeDirectory{}, &fakeNotifier{})

	_, err := s.CheckOrRegister(context.Background(), "  ", 1)
	require.Error(t, err)

	_, err = s.CheckOrRegister(context.Background(), "AAA", 0)
	require.Error(t, err)
}

func TestDeleteCodes_Normalizes(t *testing.T) {
	r := &fakeRepo{deletedN: 1}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	n, err := s.DeleteCodes(context.Background(), []string{"aaa111222", "NOPE000000"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, []string{"AAA111222", "NOPE000000"}, r.deletedCodes)
}

func TestPurgeByStatus_Validate(t *testing.T) {
	r := &fakeRepo{purgedN: 3}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	_, err := s.PurgeByStatus(context.Background(), "")
	require.Error(t, err)

	n, err := s.PurgeByStatus(context.Background(), models.StatusShipped)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.Equal(t, models.StatusShipped, r.purgedStatus)
}

func TestUnbindCode(t *testing.T) {
	r := &fakeRepo{}
	s := New(r, &fakeDirectory{}, &fakeNotifier{})

	require.Error(t, s.UnbindCode(context.Background(), " "))
	require.NoError(t, s.UnbindCode(context.Background(), "aaa"))
	require.Equal(t, "AAA", r.clearedCode)
}

func TestListByOwner_Validate(t *testing.T) {
	s := New(&fakeRepo{}, &fakeDirectory{}, &fakeNotifier{})
	_, err := s.ListByOwner(context.Background(), 0)
	require.Error(t, err)
}
