package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	events []models.IngestionCompletedEvent
}

func (f *fakePublisher) PublishIngestionCompleted(_ context.Context, evt models.IngestionCompletedEvent) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeLocker struct {
	held     bool
	err      error
	released bool
}

func (f *fakeLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.held, nil
}

func (f *fakeLocker) ReleaseLock(context.Context, string) error {
	f.released = true
	return nil
}

func newRunner(t *testing.T, locker Locker) (*Runner, *store.Store, *fakePublisher) {
	t.Helper()
	st, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	pub := &fakePublisher{}
	return NewRunner(st, NewGrouper(), NewMaterializer(nil), locker, pub), st, pub
}

func writeFile(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func ordersFeed(t *testing.T) string {
	return writeFile(t, "orders.csv",
		strings.Join(purchaseHeader, ","),
		"a@example.com,홍길동,010-1234-5678,10K,티셔츠 사이즈: L,2,40000,홍길동,,04524,서울,101호",
		",,,5K,,1,,,,,,",
		"b@example.com,김철수,01099998888,하프,,1,50000,김철수,,,부산,",
		",,,5K,,1,,,,,,",
		",,,,,,30000,,,,,",
	)
}

func TestRunIngestsFeeds(t *testing.T) {
	locker := &fakeLocker{}
	r, st, pub := newRunner(t, locker)
	ctx := context.Background()
	members := writeFile(t, "members.csv", "이메일,성별", "A@example.com,M")

	report, err := r.Run(ctx, Options{OrdersPath: ordersFeed(t), MembersPath: members})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Rows)
	assert.Equal(t, 2, report.Orders)
	assert.Equal(t, 5, report.Participants)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 2, report.MultiBuyers)
	assert.Equal(t, []Diagnostic{{Line: 6, Reason: ReasonAmountWithoutEmail}}, report.Skipped)
	assert.True(t, locker.released)

	require.Len(t, pub.events, 1)
	assert.Equal(t, 2, pub.events[0].Orders)

	summary, err := st.BuyerSummary(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalParticipants)
	require.NotNil(t, summary.BuyerGender)
	assert.Equal(t, "M", *summary.BuyerGender)

	integrity, err := st.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, integrity.OK())
}

func TestRunMissingMemberFeedIsSoft(t *testing.T) {
	r, _, _ := newRunner(t, nil)
	report, err := r.Run(context.Background(), Options{
		OrdersPath:  ordersFeed(t),
		MembersPath: filepath.Join(t.TempDir(), "absent.csv"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Orders)
}

func TestRunRespectsLock(t *testing.T) {
	r, _, pub := newRunner(t, &fakeLocker{held: true})
	_, err := r.Run(context.Background(), Options{OrdersPath: ordersFeed(t)})
	assert.ErrorIs(t, err, ErrLocked)
	assert.Empty(t, pub.events)
}

func TestRunWithoutRedisContinues(t *testing.T) {
	r, _, _ := newRunner(t, &fakeLocker{err: errors.New("connection refused")})
	_, err := r.Run(context.Background(), Options{OrdersPath: ordersFeed(t)})
	assert.NoError(t, err)
}

func TestRunBacksUpSQLite(t *testing.T) {
	r, _, _ := newRunner(t, nil)
	backup := filepath.Join(t.TempDir(), "backup.db")
	_, err := r.Run(context.Background(), Options{OrdersPath: ordersFeed(t), BackupPath: backup})
	require.NoError(t, err)
	assert.FileExists(t, backup)
}

func TestRunMissingOrdersFeed(t *testing.T) {
	r, _, _ := newRunner(t, nil)
	_, err := r.Run(context.Background(), Options{OrdersPath: filepath.Join(t.TempDir(), "absent.csv")})
	assert.Error(t, err)
}
