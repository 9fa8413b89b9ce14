package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strp(s string) *string { return &s }

// seedOrders stores one order per orderSeed, each with empty slots.
func seedOrders(t *testing.T, st *store.Store, seeds ...orderSeed) []models.OrderDraft {
	t.Helper()
	drafts := make([]models.OrderDraft, 0, len(seeds))
	for _, s := range seeds {
		d := models.OrderDraft{Order: models.Order{
			BuyerID:           store.CanonicalBuyerID(s.email),
			BuyerEmail:        s.email,
			BuyerName:         "홍길동",
			BuyerPhone:        s.phone,
			RecipientPhone:    s.phone,
			BuyerGender:       s.gender,
			TotalParticipants: s.total,
			Course:            "10K",
			TotalAmount:       s.amount,
			CreatedAt:         time.Now().UTC().Truncate(time.Second),
		}}
		for i := 0; i < s.total; i++ {
			d.Participants = append(d.Participants, models.Participant{
				ParticipantIndex: i, Course: "10K", IsPrimary: i == 0,
				CreatedAt: d.Order.CreatedAt, UpdatedAt: d.Order.CreatedAt,
			})
		}
		drafts = append(drafts, d)
	}
	require.NoError(t, st.ReplaceAll(context.Background(), drafts))
	return drafts
}

type orderSeed struct {
	email  string
	phone  string
	gender *string
	total  int
	amount int64
}

type fakeEvents struct {
	mu        sync.Mutex
	completed []models.ParticipantCompletedEvent
	cancelled []models.OrdersCancelledEvent
	updated   []models.OrderUpdatedEvent
}

func (f *fakeEvents) PublishParticipantCompleted(_ context.Context, e models.ParticipantCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, e)
	return nil
}

func (f *fakeEvents) PublishOrdersCancelled(_ context.Context, e models.OrdersCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, e)
	return nil
}

func (f *fakeEvents) PublishOrderUpdated(_ context.Context, e models.OrderUpdatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, e)
	return nil
}
