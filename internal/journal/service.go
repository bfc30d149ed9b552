package journal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/db/models"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

// Entry describes one dispatch attempt to record.
type Entry struct {
	Actor          orders.Actor
	Operation      enums.OperationKind
	OrderID        string
	ItemID         string
	WireStatus     enums.LineItemStatus
	TrackingNumber string
	Outcome        enums.DispatchOutcome
	ErrorMessage   string
	Duration       time.Duration
}

// ActivityPage is one page of attempts for an order, newest first.
type ActivityPage struct {
	Attempts   []models.DispatchAttempt `json:"attempts"`
	NextCursor string                   `json:"next_cursor,omitempty"`
}

// Journal records dispatch attempts and lists them back.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
	Activity(ctx context.Context, scope, orderID string, params pagination.Params) (ActivityPage, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the journal on top of repo.
func NewService(repo Repository) (Journal, error) {
	if repo == nil {
		return nil, errors.New("journal repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) error {
	attempt := &models.DispatchAttempt{
		ID:             uuid.New(),
		Scope:          entry.Actor.Scope(),
		ActorUserID:    entry.Actor.UserID,
		ActorStoreID:   entry.Actor.StoreID,
		ActorKind:      entry.Actor.Kind,
		Operation:      entry.Operation,
		OrderID:        entry.OrderID,
		ItemID:         optional(entry.ItemID),
		WireStatus:     optional(entry.WireStatus.String()),
		TrackingNumber: optional(entry.TrackingNumber),
		Outcome:        entry.Outcome,
		ErrorMessage:   optional(entry.ErrorMessage),
		DurationMS:     entry.Duration.Milliseconds(),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Create(ctx, attempt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record dispatch attempt")
	}
	return nil
}

func (s *service) Activity(ctx context.Context, scope, orderID string, params pagination.Params) (ActivityPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return ActivityPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	attempts, next, err := s.repo.ListForOrder(ctx, listParams{
		Scope:   scope,
		OrderID: orderID,
		Limit:   params.Limit,
		Cursor:  cursor,
	})
	if err != nil {
		return ActivityPage{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dispatch attempts")
	}

	page := ActivityPage{Attempts: attempts}
	if page.Attempts == nil {
		page.Attempts = []models.DispatchAttempt{}
	}
	if next != nil {
		page.NextCursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// Noop is used when the journal is disabled.
type Noop struct{}

func (Noop) Record(context.Context, Entry) error { return nil }

func (Noop) Activity(context.Context, string, string, pagination.Params) (ActivityPage, error) {
	return ActivityPage{Attempts: []models.DispatchAttempt{}}, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
