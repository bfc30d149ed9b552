package desk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/events"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/inflight"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/viewcache"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/backend"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
)

// Result is what a dispatch answers with: how it ended and the view after it.
type Result struct {
	Outcome enums.DispatchOutcome `json:"outcome"`
	View    View                  `json:"view"`
}

type operation struct {
	kind     enums.OperationKind
	orderID  string
	entityID string
	itemID   string
	wire     enums.LineItemStatus
	tracking string
	fallback string
	call     func(ctx context.Context) (*orders.SubOrder, error)
}

func (o operation) transition() events.Transition {
	t := events.Transition{
		Operation:      o.kind,
		OrderID:        o.orderID,
		ItemID:         o.itemID,
		Status:         o.wire,
		TrackingNumber: o.tracking,
	}
	if o.kind == enums.OperationCancelItem {
		t.Status = enums.LineItemStatusCancelled
	}
	return t
}

// AdvanceStatus moves an item forward. processing is sent as paid; paid, shipped and
// delivered are sent as given.
func (s *Service) AdvanceStatus(ctx context.Context, actor orders.Actor, filters orders.Filters, orderID, itemID string, status enums.LineItemStatus, trackingNumber string) (Result, error) {
	if err := requireTarget(orderID, itemID); err != nil {
		return Result{}, err
	}
	requested, _ := enums.ParseLineItemStatus(status.String())
	wire, ok := orders.WireStatus(requested)
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported status %q", status)).
			WithDetails(map[string]string{"status": "must be one of processing, paid, shipped, delivered"})
	}
	tracking := strings.TrimSpace(trackingNumber)
	return s.dispatch(ctx, actor, filters, operation{
		kind:     enums.OperationAdvanceStatus,
		orderID:  orderID,
		entityID: itemID,
		itemID:   itemID,
		wire:     wire,
		tracking: tracking,
		fallback: backend.MsgUpdateStatusFailed,
		call: func(ctx context.Context) (*orders.SubOrder, error) {
			return s.backend.UpdateItemStatus(ctx, actor, orderID, itemID, wire, tracking)
		},
	})
}

// CancelItem cancels one item with the given reason, or the default reason when blank.
func (s *Service) CancelItem(ctx context.Context, actor orders.Actor, filters orders.Filters, orderID, itemID, reason string) (Result, error) {
	if err := requireTarget(orderID, itemID); err != nil {
		return Result{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = s.cancelReason
	}
	return s.dispatch(ctx, actor, filters, operation{
		kind:     enums.OperationCancelItem,
		orderID:  orderID,
		entityID: itemID,
		itemID:   itemID,
		fallback: backend.MsgCancelFailed,
		call: func(ctx context.Context) (*orders.SubOrder, error) {
			return s.backend.CancelItem(ctx, actor, orderID, itemID, reason)
		},
	})
}

// ConfirmPaymentCollection records that the cash for a delivered item was collected.
func (s *Service) ConfirmPaymentCollection(ctx context.Context, actor orders.Actor, filters orders.Filters, orderID, itemID string) (Result, error) {
	if err := requireTarget(orderID, itemID); err != nil {
		return Result{}, err
	}
	return s.dispatch(ctx, actor, filters, operation{
		kind:     enums.OperationConfirmPaymentCollection,
		orderID:  orderID,
		entityID: itemID,
		itemID:   itemID,
		fallback: backend.MsgConfirmPaymentFailed,
		call: func(ctx context.Context) (*orders.SubOrder, error) {
			return s.backend.ConfirmPaymentCollection(ctx, actor, orderID, itemID)
		},
	})
}

// AddTracking attaches a tracking number to the whole order. A blank number is skipped
// without calling the backend or touching the order's error.
func (s *Service) AddTracking(ctx context.Context, actor orders.Actor, filters orders.Filters, orderID, trackingNumber string) (Result, error) {
	if err := requireSeller(actor); err != nil {
		return Result{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	tracking := strings.TrimSpace(trackingNumber)
	if tracking == "" {
		op := operation{kind: enums.OperationAddTracking, orderID: orderID, entityID: orderID}
		s.settle(s.logg.WithDispatch(ctx, op.kind.String(), orderID, orderID), actor, op, enums.DispatchOutcomeSkipped, "", s.now())
		// answer from the committed view; an empty one when nothing was loaded yet
		snapshot, _ := s.cache.Get(viewKey(actor, filters))
		return Result{Outcome: enums.DispatchOutcomeSkipped, View: s.render(ctx, actor, filters, snapshot)}, nil
	}

	return s.dispatch(ctx, actor, filters, operation{
		kind:     enums.OperationAddTracking,
		orderID:  orderID,
		entityID: orderID,
		tracking: tracking,
		fallback: backend.MsgAddTrackingFailed,
		call: func(ctx context.Context) (*orders.SubOrder, error) {
			return nil, s.backend.AddTracking(ctx, actor, orderID, tracking)
		},
	})
}

func (s *Service) dispatch(ctx context.Context, actor orders.Actor, filters orders.Filters, op operation) (Result, error) {
	if err := requireSeller(actor); err != nil {
		return Result{}, err
	}
	scope := actor.Scope()
	ctx = s.logg.WithDispatch(ctx, op.kind.String(), op.orderID, op.entityID)
	start := s.now()

	release, err := s.inflight.Acquire(ctx, scope, inflight.Key{EntityID: op.entityID, Op: op.kind})
	if err != nil {
		outcome := enums.DispatchOutcomeFailed
		if errors.Is(err, inflight.ErrBusy) {
			outcome = enums.DispatchOutcomeConflict
		}
		s.settle(ctx, actor, op, outcome, err.Error(), start)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire in-flight slot")
		}
		return Result{}, err
	}
	detached := context.WithoutCancel(ctx)

	if err := s.errors.Clear(ctx, scope, op.entityID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to clear error message")
	}

	sub, callErr := op.call(ctx)
	if callErr != nil {
		msg := failureMessage(callErr, op.fallback)
		if err := s.errors.Set(detached, scope, op.entityID, msg); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to record error message")
		}
		release(detached)
		s.settle(ctx, actor, op, enums.DispatchOutcomeFailed, msg, start)
		return Result{}, callErr
	}

	snapshot, syncErr := s.sync(ctx, actor, filters, op, sub)
	release(detached)
	s.settle(ctx, actor, op, enums.DispatchOutcomeSucceeded, "", start)
	if err := s.events.PublishTransition(detached, actor, op.transition()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to publish transition")
	}

	if syncErr != nil {
		return Result{Outcome: enums.DispatchOutcomeSucceeded}, pkgerrors.Wrap(pkgerrors.CodeDependency, syncErr, "transition applied but the view could not be refreshed")
	}
	return Result{
		Outcome: enums.DispatchOutcomeSucceeded,
		View:    s.render(ctx, actor, filters, snapshot),
	}, nil
}

// sync brings the caller's view up to date after a confirmed dispatch. Patch mode swaps in
// the item the backend echoed back and falls back to a fresh fetch whenever that is not
// possible.
func (s *Service) sync(ctx context.Context, actor orders.Actor, filters orders.Filters, op operation, sub *orders.SubOrder) (viewcache.Snapshot, error) {
	if s.syncMode == enums.SyncModePatch && op.itemID != "" && sub != nil {
		if snapshot, ok := s.patch(viewKey(actor, filters), op, *sub); ok {
			return snapshot, nil
		}
		s.logg.Debug(ctx, "patch not applicable, refetching view")
	}
	return s.load(ctx, actor, filters, true)
}

func (s *Service) patch(key string, op operation, sub orders.SubOrder) (viewcache.Snapshot, bool) {
	if parent := sub.ParentID(); parent != "" && parent != op.orderID {
		return viewcache.Snapshot{}, false
	}
	item, ok := confirmedItem(sub, op.itemID)
	if !ok {
		return viewcache.Snapshot{}, false
	}
	current, ok := s.cache.Get(key)
	if !ok {
		return viewcache.Snapshot{}, false
	}
	ref := viewcache.ItemRef{OrderID: op.orderID, ItemKey: op.itemID}
	expected := current.Version(ref)
	if expected == 0 {
		return viewcache.Snapshot{}, false
	}
	return s.cache.CompareAndSetItem(key, ref, expected, item)
}

func (s *Service) settle(ctx context.Context, actor orders.Actor, op operation, outcome enums.DispatchOutcome, message string, start time.Time) {
	elapsed := s.now().Sub(start)
	s.metrics.ObserveDispatch(op.kind.String(), outcome.String(), elapsed)

	fields := map[string]any{
		"outcome":     outcome.String(),
		"duration_ms": elapsed.Milliseconds(),
	}
	if message != "" {
		fields["error_message"] = message
	}
	logCtx := s.logg.WithFields(ctx, fields)
	if outcome == enums.DispatchOutcomeSucceeded || outcome == enums.DispatchOutcomeSkipped {
		s.logg.Info(logCtx, "dispatch settled")
	} else {
		s.logg.Warn(logCtx, "dispatch settled")
	}

	err := s.journal.Record(context.WithoutCancel(ctx), journal.Entry{
		Actor:          actor,
		Operation:      op.kind,
		OrderID:        op.orderID,
		ItemID:         op.itemID,
		WireStatus:     op.wire,
		TrackingNumber: op.tracking,
		Outcome:        outcome,
		ErrorMessage:   message,
		Duration:       elapsed,
	})
	if err != nil {
		s.logg.Error(ctx, "failed to journal dispatch attempt", err)
	}
}

// confirmedItem finds the dispatched item inside the suborder the backend returned.
func confirmedItem(sub orders.SubOrder, itemID string) (orders.LineItem, bool) {
	var keys orders.ItemKeys
	for _, item := range sub.Items {
		if keys.Next(item) == itemID {
			return item, true
		}
	}
	return orders.LineItem{}, false
}

// failureMessage is the text shown next to the failed row: the server message when there
// was one, else the generic message for the operation.
func failureMessage(err error, fallback string) string {
	if typed := pkgerrors.As(err); typed != nil && strings.TrimSpace(typed.Message()) != "" {
		return typed.Message()
	}
	return fallback
}

func requireSeller(actor orders.Actor) error {
	if actor.Kind != enums.ActorKindSeller {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only sellers can change order items")
	}
	return nil
}

func requireTarget(orderID, itemID string) error {
	details := map[string]string{}
	if strings.TrimSpace(orderID) == "" {
		details["order_id"] = "required"
	}
	if strings.TrimSpace(itemID) == "" {
		details["item_id"] = "required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and item ids are required").WithDetails(details)
	}
	return nil
}
