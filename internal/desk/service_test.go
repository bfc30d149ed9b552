package desk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/errsurface"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/events"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/inflight"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/viewcache"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/backend"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

type statusCall struct {
	orderID  string
	itemID   string
	status   enums.LineItemStatus
	tracking string
}

type stubBackend struct {
	mu            sync.Mutex
	subs          []orders.SubOrder
	listCalls     int
	statusCalls   []statusCall
	cancelReasons []string
	trackingCalls []string
	paymentCalls  []string
	failWith      error
	listErr       error
	echo          bool
	block         chan struct{}
	entered       chan struct{}
}

func (b *stubBackend) ListSubOrders(context.Context, orders.Actor, orders.Filters) ([]orders.SubOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]orders.SubOrder, len(b.subs))
	for i, sub := range b.subs {
		out[i] = sub
		out[i].Items = append([]orders.LineItem(nil), sub.Items...)
	}
	return out, nil
}

func (b *stubBackend) UpdateItemStatus(_ context.Context, _ orders.Actor, orderID, itemID string, status enums.LineItemStatus, tracking string) (*orders.SubOrder, error) {
	if b.block != nil {
		b.entered <- struct{}{}
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusCalls = append(b.statusCalls, statusCall{orderID: orderID, itemID: itemID, status: status, tracking: tracking})
	if b.failWith != nil {
		return nil, b.failWith
	}
	return b.apply(itemID, func(item *orders.LineItem) { item.Status = status }), nil
}

func (b *stubBackend) CancelItem(_ context.Context, _ orders.Actor, _, itemID, reason string) (*orders.SubOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelReasons = append(b.cancelReasons, reason)
	if b.failWith != nil {
		return nil, b.failWith
	}
	return b.apply(itemID, func(item *orders.LineItem) { item.Status = enums.LineItemStatusCancelled }), nil
}

func (b *stubBackend) ConfirmPaymentCollection(_ context.Context, _ orders.Actor, _, itemID string) (*orders.SubOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paymentCalls = append(b.paymentCalls, itemID)
	if b.failWith != nil {
		return nil, b.failWith
	}
	return b.apply(itemID, func(item *orders.LineItem) { item.PaymentCollectionStatus = enums.PaymentCollectionStatusCollected }), nil
}

func (b *stubBackend) AddTracking(_ context.Context, _ orders.Actor, _, trackingNumber string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackingCalls = append(b.trackingCalls, trackingNumber)
	return b.failWith
}

// apply mutates the stored item the way the backend would and echoes the suborder when asked.
func (b *stubBackend) apply(itemID string, mutate func(*orders.LineItem)) *orders.SubOrder {
	for si := range b.subs {
		for ii := range b.subs[si].Items {
			if b.subs[si].Items[ii].ID != itemID {
				continue
			}
			items := append([]orders.LineItem(nil), b.subs[si].Items...)
			mutate(&items[ii])
			b.subs[si].Items = items
			if !b.echo {
				return nil
			}
			echoed := b.subs[si]
			echoed.Items = append([]orders.LineItem(nil), items...)
			return &echoed
		}
	}
	return nil
}

func (b *stubBackend) lists() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (j *recordingJournal) Record(_ context.Context, entry journal.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	return nil
}

func (j *recordingJournal) Activity(context.Context, string, string, pagination.Params) (journal.ActivityPage, error) {
	return journal.ActivityPage{}, nil
}

func (j *recordingJournal) outcomes() []enums.DispatchOutcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]enums.DispatchOutcome, 0, len(j.entries))
	for _, entry := range j.entries {
		out = append(out, entry.Outcome)
	}
	return out
}

type recordingEvents struct {
	mu          sync.Mutex
	transitions []events.Transition
}

func (e *recordingEvents) PublishTransition(_ context.Context, _ orders.Actor, transition events.Transition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = append(e.transitions, transition)
	return nil
}

type fixture struct {
	svc     *Service
	backend *stubBackend
	journal *recordingJournal
	events  *recordingEvents
	errors  *errsurface.MemoryStore
	seller  orders.Actor
}

func seedSubOrders() []orders.SubOrder {
	parent := &orders.ParentOrder{
		ID: "O1",
		User: orders.UserRef{
			ID:        "U1",
			Name:      "Ada Buyer",
			Email:     "ada@example.com",
			Populated: true,
		},
		Populated: true,
	}
	return []orders.SubOrder{
		{ID: "S1", Order: parent, Items: []orders.LineItem{{ID: "I1", Quantity: 1, Status: enums.LineItemStatusPending}}},
		{ID: "S2", Order: &orders.ParentOrder{ID: "O1"}, Items: []orders.LineItem{{ID: "I2", Quantity: 2, Status: enums.LineItemStatusPaid}}},
		{ID: "S3", Order: &orders.ParentOrder{ID: "O2"}, Items: []orders.LineItem{{ID: "I3", Quantity: 1, Status: enums.LineItemStatusDelivered}}},
	}
}

func newFixture(t *testing.T, mode enums.SyncMode) *fixture {
	t.Helper()
	store := uuid.New()
	f := &fixture{
		backend: &stubBackend{subs: seedSubOrders()},
		journal: &recordingJournal{},
		events:  &recordingEvents{},
		errors:  errsurface.NewMemoryStore(time.Hour),
		seller:  orders.Actor{UserID: uuid.New(), StoreID: &store, Kind: enums.ActorKindSeller, Token: "tok"},
	}
	svc, err := NewService(ServiceParams{
		Backend:  f.backend,
		InFlight: inflight.NewMemoryRegistry(time.Minute),
		Errors:   f.errors,
		Cache:    viewcache.New(),
		Journal:  f.journal,
		Events:   f.events,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		SyncMode: mode,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func findItem(t *testing.T, view View, itemID string) ViewItem {
	t.Helper()
	for _, order := range view.Orders {
		for _, item := range order.Items {
			if item.Key == itemID {
				return item
			}
		}
	}
	t.Fatalf("item %s not in view", itemID)
	return ViewItem{}
}

func actionsOf(item ViewItem) []enums.ItemAction {
	out := []enums.ItemAction{}
	for _, control := range item.Controls {
		out = append(out, control.Action)
	}
	return out
}

func TestViewAggregatesAndProjects(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	view, err := f.svc.View(context.Background(), f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	require.Len(t, view.Orders, 2)
	assert.False(t, view.ReadOnly)

	first := view.Orders[0]
	assert.Equal(t, "O1", first.OrderID)
	assert.Equal(t, "Ada Buyer", first.CustomerLabels.Name)
	assert.Equal(t, "Phone not available", first.CustomerLabels.Phone)
	require.Len(t, first.Items, 2)

	assert.Equal(t, []enums.ItemAction{enums.ItemActionProcess, enums.ItemActionCancel}, actionsOf(findItem(t, view, "I1")))
	assert.Equal(t, []enums.ItemAction{enums.ItemActionMarkShipped, enums.ItemActionCancel}, actionsOf(findItem(t, view, "I2")))
	assert.Equal(t, []enums.ItemAction{enums.ItemActionConfirmPayment}, actionsOf(findItem(t, view, "I3")))

	second := view.Orders[1]
	assert.Nil(t, second.Customer)
	assert.Equal(t, "Name not available", second.CustomerLabels.Name)

	process := findItem(t, view, "I1").Controls[0]
	assert.Equal(t, enums.LineItemStatusPaid, process.Target)
	assert.Equal(t, enums.OperationAdvanceStatus, process.Operation)
	assert.NotZero(t, findItem(t, view, "I1").Version)
}

func TestViewIsReadOnlyForBuyers(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	buyer := orders.Actor{UserID: uuid.New(), Kind: enums.ActorKindBuyer}

	view, err := f.svc.View(context.Background(), buyer, orders.Filters{}, false)
	require.NoError(t, err)
	assert.True(t, view.ReadOnly)
	for _, order := range view.Orders {
		for _, item := range order.Items {
			assert.Empty(t, item.Controls)
		}
	}

	_, err = f.svc.AdvanceStatus(context.Background(), buyer, orders.Filters{}, "O1", "I1", enums.LineItemStatusPaid, "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
	assert.Empty(t, f.backend.statusCalls)
}

func TestAdvanceStatusSendsPaidForProcessing(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	result, err := f.svc.AdvanceStatus(context.Background(), f.seller, orders.Filters{}, "O1", "I1", enums.LineItemStatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchOutcomeSucceeded, result.Outcome)

	require.Len(t, f.backend.statusCalls, 1)
	assert.Equal(t, enums.LineItemStatusPaid, f.backend.statusCalls[0].status)
	assert.Equal(t, "I1", f.backend.statusCalls[0].itemID)

	assert.Equal(t, enums.LineItemStatusPaid, findItem(t, result.View, "I1").EffectiveStatus)
	assert.Equal(t, 1, f.backend.lists(), "refetch mode reloads the view after success")

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, enums.LineItemStatusPaid, f.journal.entries[0].WireStatus)
	require.Len(t, f.events.transitions, 1)
	assert.Equal(t, enums.LineItemStatusPaid, f.events.transitions[0].Status)
}

func TestAdvanceStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	for _, status := range []enums.LineItemStatus{"pending", "cancelled", "completed", "bogus", ""} {
		_, err := f.svc.AdvanceStatus(context.Background(), f.seller, orders.Filters{}, "O1", "I1", status, "")
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "status %q", status)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
	assert.Empty(t, f.backend.statusCalls)
}

func TestAddTrackingBlankIsSkipped(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	ctx := context.Background()
	require.NoError(t, f.errors.Set(ctx, f.seller.Scope(), "O1", "Failed to add tracking number"))

	for _, input := range []string{"", "   ", "\t\n"} {
		result, err := f.svc.AddTracking(ctx, f.seller, orders.Filters{}, "O1", input)
		require.NoError(t, err)
		assert.Equal(t, enums.DispatchOutcomeSkipped, result.Outcome)
	}

	assert.Empty(t, f.backend.trackingCalls)
	assert.Equal(t, 0, f.backend.lists(), "a blank tracking number must not reach the backend")
	errs, err := f.svc.Errors(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, "Failed to add tracking number", errs["O1"])
	assert.Equal(t, []enums.DispatchOutcome{enums.DispatchOutcomeSkipped, enums.DispatchOutcomeSkipped, enums.DispatchOutcomeSkipped}, f.journal.outcomes())
	assert.Empty(t, f.events.transitions)
}

func TestAddTrackingBlankAnswersFromCachedView(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	ctx := context.Background()

	loaded, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	require.NotEmpty(t, loaded.Orders)
	require.Equal(t, 1, f.backend.lists())

	f.backend.mu.Lock()
	f.backend.listErr = errors.New("backend down")
	f.backend.mu.Unlock()

	result, err := f.svc.AddTracking(ctx, f.seller, orders.Filters{}, "O1", " ")
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchOutcomeSkipped, result.Outcome)
	assert.Equal(t, loaded.Generation, result.View.Generation)
	assert.Len(t, result.View.Orders, len(loaded.Orders))
	assert.Equal(t, 1, f.backend.lists())
}

func TestAddTrackingBlankWithFailingBackend(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	f.backend.listErr = errors.New("backend down")

	result, err := f.svc.AddTracking(context.Background(), f.seller, orders.Filters{}, "O1", "")
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchOutcomeSkipped, result.Outcome)
	assert.Empty(t, result.View.Orders)
	assert.Equal(t, 0, f.backend.lists())
}

func TestAddTrackingTrimsAndPublishes(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	result, err := f.svc.AddTracking(context.Background(), f.seller, orders.Filters{}, "O1", "  1Z999  ")
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchOutcomeSucceeded, result.Outcome)
	assert.Equal(t, []string{"1Z999"}, f.backend.trackingCalls)
	require.Len(t, f.events.transitions, 1)
	assert.Equal(t, enums.OperationAddTracking, f.events.transitions[0].Operation)
	assert.Equal(t, "1Z999", f.events.transitions[0].TrackingNumber)
}

func TestFailedDispatchIsScopedToItem(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	ctx := context.Background()

	before, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)

	f.backend.failWith = pkgerrors.Upstream(&pkgerrors.UpstreamError{
		Status:  http.StatusConflict,
		Message: "Stock unavailable",
	}, backend.MsgCancelFailed)

	_, err = f.svc.CancelItem(ctx, f.seller, orders.Filters{}, "O1", "I1", "")
	require.Error(t, err)

	errs, err := f.svc.Errors(ctx, f.seller)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"I1": "Stock unavailable"}, errs)

	f.backend.failWith = nil
	after, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	assert.Equal(t, "Stock unavailable", findItem(t, after, "I1").Error)
	assert.Empty(t, findItem(t, after, "I2").Error)
	assert.Equal(t, findItem(t, before, "I2").EffectiveStatus, findItem(t, after, "I2").EffectiveStatus)
	assert.Equal(t, actionsOf(findItem(t, before, "I2")), actionsOf(findItem(t, after, "I2")))
	assert.Equal(t, enums.LineItemStatusPending, findItem(t, after, "I1").EffectiveStatus)

	assert.Equal(t, []enums.DispatchOutcome{enums.DispatchOutcomeFailed}, f.journal.outcomes())
	assert.Empty(t, f.events.transitions)
}

func TestFailureFallsBackToGenericMessage(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	f.backend.failWith = errors.New("connection reset")

	_, err := f.svc.ConfirmPaymentCollection(context.Background(), f.seller, orders.Filters{}, "O2", "I3")
	require.Error(t, err)

	errs, err := f.svc.Errors(context.Background(), f.seller)
	require.NoError(t, err)
	assert.Equal(t, backend.MsgConfirmPaymentFailed, errs["I3"])
}

func TestRetryClearsError(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	ctx := context.Background()

	f.backend.failWith = pkgerrors.Upstream(&pkgerrors.UpstreamError{Status: http.StatusBadRequest, Message: "Invalid transition"}, backend.MsgUpdateStatusFailed)
	_, err := f.svc.AdvanceStatus(ctx, f.seller, orders.Filters{}, "O1", "I2", enums.LineItemStatusShipped, "")
	require.Error(t, err)

	f.backend.failWith = nil
	result, err := f.svc.AdvanceStatus(ctx, f.seller, orders.Filters{}, "O1", "I2", enums.LineItemStatusShipped, "TRK")
	require.NoError(t, err)
	assert.Empty(t, result.View.Errors)
	assert.Empty(t, findItem(t, result.View, "I2").Error)
	assert.Equal(t, []enums.ItemAction{enums.ItemActionMarkDelivered}, actionsOf(findItem(t, result.View, "I2")))
	assert.Equal(t, "TRK", f.backend.statusCalls[1].tracking)
}

func TestCancelUsesDefaultReason(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	_, err := f.svc.CancelItem(context.Background(), f.seller, orders.Filters{}, "O1", "I1", "  ")
	require.NoError(t, err)
	_, err = f.svc.CancelItem(context.Background(), f.seller, orders.Filters{}, "O1", "I2", "Out of stock")
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultCancelReason, "Out of stock"}, f.backend.cancelReasons)
	require.Len(t, f.events.transitions, 2)
	assert.Equal(t, enums.LineItemStatusCancelled, f.events.transitions[0].Status)
}

func TestConfirmPaymentCollectionSettlesItem(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)

	result, err := f.svc.ConfirmPaymentCollection(context.Background(), f.seller, orders.Filters{}, "O2", "I3")
	require.NoError(t, err)
	assert.Equal(t, enums.DispatchOutcomeSucceeded, result.Outcome)
	assert.Equal(t, []string{"I3"}, f.backend.paymentCalls)

	item := findItem(t, result.View, "I3")
	assert.True(t, item.Terminal)
	assert.Empty(t, item.Controls)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, enums.OperationConfirmPaymentCollection, f.journal.entries[0].Operation)
	assert.Equal(t, "O2", f.journal.entries[0].OrderID)
}

func TestConcurrentDispatchOnSameItemConflicts(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	f.backend.block = make(chan struct{})
	f.backend.entered = make(chan struct{}, 2)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.AdvanceStatus(ctx, f.seller, orders.Filters{}, "O1", "I1", enums.LineItemStatusPaid, "")
		done <- err
	}()
	<-f.backend.entered

	view, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	busyItem := findItem(t, view, "I1")
	assert.True(t, busyItem.Busy)
	assert.True(t, busyItem.Controls[0].Busy)
	assert.False(t, busyItem.Controls[1].Busy, "cancel is a different operation")
	assert.False(t, findItem(t, view, "I2").Busy)

	_, err = f.svc.AdvanceStatus(ctx, f.seller, orders.Filters{}, "O1", "I1", enums.LineItemStatusPaid, "")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInFlight, typed.Code())
	assert.True(t, errors.Is(err, inflight.ErrBusy))

	close(f.backend.block)
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []enums.DispatchOutcome{enums.DispatchOutcomeConflict, enums.DispatchOutcomeSucceeded}, f.journal.outcomes())
	assert.Len(t, f.backend.statusCalls, 1)

	after, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	assert.False(t, findItem(t, after, "I1").Busy)
}

func TestPatchModeAppliesConfirmedItem(t *testing.T) {
	f := newFixture(t, enums.SyncModePatch)
	f.backend.echo = true
	ctx := context.Background()

	before, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.backend.lists())
	oldVersion := findItem(t, before, "I2").Version

	result, err := f.svc.AdvanceStatus(ctx, f.seller, orders.Filters{}, "O1", "I2", enums.LineItemStatusShipped, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.lists(), "patch mode must not refetch")

	patched := findItem(t, result.View, "I2")
	assert.Equal(t, enums.LineItemStatusShipped, patched.EffectiveStatus)
	assert.Greater(t, patched.Version, oldVersion)
	assert.Equal(t, findItem(t, before, "I1").Version, findItem(t, result.View, "I1").Version)
}

func TestPatchModeFallsBackToRefetch(t *testing.T) {
	f := newFixture(t, enums.SyncModePatch)
	ctx := context.Background()

	_, err := f.svc.View(ctx, f.seller, orders.Filters{}, false)
	require.NoError(t, err)

	result, err := f.svc.ConfirmPaymentCollection(ctx, f.seller, orders.Filters{}, "O2", "I3")
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.lists(), "no echoed suborder means a refetch")
	assert.True(t, findItem(t, result.View, "I3").Terminal)
}

func TestPatchModeWithoutCachedViewRefetches(t *testing.T) {
	f := newFixture(t, enums.SyncModePatch)
	f.backend.echo = true

	_, err := f.svc.AdvanceStatus(context.Background(), f.seller, orders.Filters{}, "O1", "I1", enums.LineItemStatusPaid, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.lists())
}

func TestClearError(t *testing.T) {
	f := newFixture(t, enums.SyncModeRefetch)
	ctx := context.Background()
	require.NoError(t, f.errors.Set(ctx, f.seller.Scope(), "I1", "boom"))

	require.NoError(t, f.svc.ClearError(ctx, f.seller, "I1"))
	errs, err := f.svc.Errors(ctx, f.seller)
	require.NoError(t, err)
	assert.Empty(t, errs)

	typed := pkgerrors.As(f.svc.ClearError(ctx, f.seller, " "))
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without backend")
	}
	svc, err := NewService(ServiceParams{
		Backend:  &stubBackend{},
		InFlight: inflight.NewMemoryRegistry(0),
		Errors:   errsurface.NewMemoryStore(0),
		Logger:   logger.New(logger.Options{Output: io.Discard}),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.SyncModeRefetch, svc.syncMode)
	assert.Equal(t, DefaultCancelReason, svc.cancelReason)
}
