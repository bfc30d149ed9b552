package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.DispatchAttempt{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, start time.Time) *service {
	t.Helper()
	svc, err := NewService(NewRepository(newTestDB(t)))
	require.NoError(t, err)
	impl := svc.(*service)
	clock := start
	impl.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return impl
}

func TestRecordAndListActivityNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	store := uuid.New()
	seller := orders.Actor{UserID: uuid.New(), StoreID: &store, Kind: enums.ActorKindSeller}

	require.NoError(t, svc.Record(ctx, Entry{
		Actor: seller, Operation: enums.OperationAdvanceStatus, OrderID: "O1", ItemID: "I1",
		WireStatus: enums.LineItemStatusPaid, Outcome: enums.DispatchOutcomeSucceeded, Duration: 120 * time.Millisecond,
	}))
	require.NoError(t, svc.Record(ctx, Entry{
		Actor: seller, Operation: enums.OperationCancelItem, OrderID: "O1", ItemID: "I2",
		Outcome: enums.DispatchOutcomeFailed, ErrorMessage: "Stock unavailable",
	}))
	require.NoError(t, svc.Record(ctx, Entry{
		Actor: seller, Operation: enums.OperationAddTracking, OrderID: "O2",
		Outcome: enums.DispatchOutcomeSkipped,
	}))

	page, err := svc.Activity(ctx, seller.Scope(), "O1", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Attempts, 2)
	assert.Empty(t, page.NextCursor)

	latest := page.Attempts[0]
	assert.Equal(t, enums.OperationCancelItem, latest.Operation)
	assert.Equal(t, enums.DispatchOutcomeFailed, latest.Outcome)
	require.NotNil(t, latest.ErrorMessage)
	assert.Equal(t, "Stock unavailable", *latest.ErrorMessage)
	assert.Nil(t, latest.WireStatus)

	earliest := page.Attempts[1]
	require.NotNil(t, earliest.WireStatus)
	assert.Equal(t, "paid", *earliest.WireStatus)
	assert.Equal(t, int64(120), earliest.DurationMS)
	require.NotNil(t, earliest.ActorStoreID)
	assert.Equal(t, store, *earliest.ActorStoreID)
}

func TestActivityIsScoped(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	first := orders.Actor{UserID: uuid.New(), Kind: enums.ActorKindSeller}
	second := orders.Actor{UserID: uuid.New(), Kind: enums.ActorKindSeller}

	require.NoError(t, svc.Record(ctx, Entry{Actor: first, Operation: enums.OperationCancelItem, OrderID: "O1", ItemID: "I1", Outcome: enums.DispatchOutcomeSucceeded}))

	page, err := svc.Activity(ctx, second.Scope(), "O1", pagination.Params{})
	require.NoError(t, err)
	assert.NotNil(t, page.Attempts)
	assert.Empty(t, page.Attempts)
}

func TestActivityPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	actor := orders.Actor{UserID: uuid.New(), Kind: enums.ActorKindSeller}

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, Entry{
			Actor: actor, Operation: enums.OperationAdvanceStatus, OrderID: "O1",
			ItemID: fmt.Sprintf("I%d", i), Outcome: enums.DispatchOutcomeSucceeded,
		}))
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := svc.Activity(ctx, actor.Scope(), "O1", pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		pages++
		for _, attempt := range page.Attempts {
			require.NotNil(t, attempt.ItemID)
			assert.False(t, seen[*attempt.ItemID], "item %s returned twice", *attempt.ItemID)
			seen[*attempt.ItemID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)
}

func TestActivityRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, time.Now())
	_, err := svc.Activity(context.Background(), "s", "O1", pagination.Params{Cursor: "%%%"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestNoopJournal(t *testing.T) {
	var j Journal = Noop{}
	require.NoError(t, j.Record(context.Background(), Entry{}))
	page, err := j.Activity(context.Background(), "s", "O1", pagination.Params{})
	require.NoError(t, err)
	assert.NotNil(t, page.Attempts)
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error without repository")
	}
}
