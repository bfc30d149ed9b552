package desk

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/errsurface"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/events"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/inflight"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/viewcache"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/metrics"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

// DefaultCancelReason is sent when a seller cancels without saying why.
const DefaultCancelReason = "Cancelled by seller"

type backendClient interface {
	ListSubOrders(ctx context.Context, actor orders.Actor, filters orders.Filters) ([]orders.SubOrder, error)
	UpdateItemStatus(ctx context.Context, actor orders.Actor, orderID, itemID string, status enums.LineItemStatus, trackingNumber string) (*orders.SubOrder, error)
	CancelItem(ctx context.Context, actor orders.Actor, orderID, itemID, reason string) (*orders.SubOrder, error)
	ConfirmPaymentCollection(ctx context.Context, actor orders.Actor, orderID, itemID string) (*orders.SubOrder, error)
	AddTracking(ctx context.Context, actor orders.Actor, orderID, trackingNumber string) error
}

// ServiceParams wires the dispatcher's collaborators.
type ServiceParams struct {
	Backend             backendClient
	InFlight            inflight.Registry
	Errors              errsurface.Store
	Cache               *viewcache.Cache
	Journal             journal.Journal
	Events              events.Publisher
	Metrics             *metrics.DispatchMetrics
	Logger              *logger.Logger
	SyncMode            enums.SyncMode
	DefaultCancelReason string
}

// Service builds order views and dispatches item transitions to the backend.
type Service struct {
	backend      backendClient
	inflight     inflight.Registry
	errors       errsurface.Store
	cache        *viewcache.Cache
	journal      journal.Journal
	events       events.Publisher
	metrics      *metrics.DispatchMetrics
	logg         *logger.Logger
	syncMode     enums.SyncMode
	cancelReason string
	now          func() time.Time
}

// NewService validates params and fills optional collaborators with no-op versions.
func NewService(params ServiceParams) (*Service, error) {
	if params.Backend == nil {
		return nil, errors.New("backend client is required")
	}
	if params.InFlight == nil {
		return nil, errors.New("in-flight registry is required")
	}
	if params.Errors == nil {
		return nil, errors.New("error store is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	cache := params.Cache
	if cache == nil {
		cache = viewcache.New()
	}
	var j journal.Journal = journal.Noop{}
	if params.Journal != nil {
		j = params.Journal
	}
	var pub events.Publisher = events.Noop{}
	if params.Events != nil {
		pub = params.Events
	}
	mode := params.SyncMode
	if mode == "" {
		mode = enums.SyncModeRefetch
	}
	reason := strings.TrimSpace(params.DefaultCancelReason)
	if reason == "" {
		reason = DefaultCancelReason
	}

	return &Service{
		backend:      params.Backend,
		inflight:     params.InFlight,
		errors:       params.Errors,
		cache:        cache,
		journal:      j,
		events:       pub,
		metrics:      params.Metrics,
		logg:         params.Logger,
		syncMode:     mode,
		cancelReason: reason,
		now:          time.Now,
	}, nil
}

// View returns the aggregated orders for the actor. A fresh view never reuses a fetch that
// started before the call.
func (s *Service) View(ctx context.Context, actor orders.Actor, filters orders.Filters, fresh bool) (View, error) {
	snapshot, err := s.load(ctx, actor, filters, fresh)
	if err != nil {
		return View{}, err
	}
	return s.render(ctx, actor, filters, snapshot), nil
}

// Errors lists the outstanding error messages for the actor, keyed by item or order id.
func (s *Service) Errors(ctx context.Context, actor orders.Actor) (map[string]string, error) {
	errs, err := s.errors.All(ctx, actor.Scope())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load error messages")
	}
	if errs == nil {
		errs = map[string]string{}
	}
	return errs, nil
}

// ClearError dismisses the message shown for an item or order.
func (s *Service) ClearError(ctx context.Context, actor orders.Actor, entityID string) error {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "entity id is required")
	}
	if err := s.errors.Clear(ctx, actor.Scope(), entityID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear error message")
	}
	return nil
}

// Activity lists the dispatch attempts made through the desk for one order.
func (s *Service) Activity(ctx context.Context, actor orders.Actor, orderID string, params pagination.Params) (journal.ActivityPage, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return journal.ActivityPage{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.journal.Activity(ctx, actor.Scope(), orderID, params)
}

func (s *Service) load(ctx context.Context, actor orders.Actor, filters orders.Filters, fresh bool) (viewcache.Snapshot, error) {
	key := viewKey(actor, filters)
	snapshot, err := s.cache.Load(ctx, key, fresh, func(ctx context.Context) ([]orders.SubOrder, error) {
		start := s.now()
		subs, err := s.backend.ListSubOrders(ctx, actor, filters)
		s.metrics.ObserveFetch(actor.Kind.String(), s.now().Sub(start), err)
		return subs, err
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "suborder fetch failed")
		return viewcache.Snapshot{}, err
	}
	return snapshot, nil
}

func (s *Service) render(ctx context.Context, actor orders.Actor, filters orders.Filters, snapshot viewcache.Snapshot) View {
	scope := actor.Scope()
	busy, err := s.inflight.Active(ctx, scope, busyKeys(snapshot))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "in-flight lookup failed")
		busy = nil
	}
	errs, err := s.errors.All(ctx, scope)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "error surface lookup failed")
		errs = nil
	}
	return buildView(actor, filters, snapshot, busy, errs)
}

func viewKey(actor orders.Actor, filters orders.Filters) string {
	return actor.Scope() + "?" + filters.Query().Encode()
}
