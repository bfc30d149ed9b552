package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-orderdesk/api/middleware"
	"github.com/angelmondragon/packfinderz-orderdesk/api/responses"
	"github.com/angelmondragon/packfinderz-orderdesk/api/validators"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/desk"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/journal"
	internalorders "github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/pagination"
)

const (
	maxReasonLength   = 500
	maxTrackingLength = 128
)

// Service is the slice of the desk the order routes call into.
type Service interface {
	View(ctx context.Context, actor internalorders.Actor, filters internalorders.Filters, fresh bool) (desk.View, error)
	Errors(ctx context.Context, actor internalorders.Actor) (map[string]string, error)
	ClearError(ctx context.Context, actor internalorders.Actor, entityID string) error
	Activity(ctx context.Context, actor internalorders.Actor, orderID string, params pagination.Params) (journal.ActivityPage, error)
	AdvanceStatus(ctx context.Context, actor internalorders.Actor, filters internalorders.Filters, orderID, itemID string, status enums.LineItemStatus, trackingNumber string) (desk.Result, error)
	CancelItem(ctx context.Context, actor internalorders.Actor, filters internalorders.Filters, orderID, itemID, reason string) (desk.Result, error)
	ConfirmPaymentCollection(ctx context.Context, actor internalorders.Actor, filters internalorders.Filters, orderID, itemID string) (desk.Result, error)
	AddTracking(ctx context.Context, actor internalorders.Actor, filters internalorders.Filters, orderID, trackingNumber string) (desk.Result, error)
}

type advanceStatusRequest struct {
	Status         string `json:"status" validate:"required,advance_status"`
	TrackingNumber string `json:"tracking_number" validate:"max=128"`
}

type cancelItemRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type addTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"max=128"`
}

// List returns the aggregated order view for the caller. ?fresh=true skips any fetch that was
// already running when the request arrived.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fresh, err := validators.ParseQueryBool(r, "fresh")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.View(r.Context(), actor, filters, fresh)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Errors returns the outstanding per-row error messages.
func Errors(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		errs, err := svc.Errors(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, errs)
	}
}

// ClearError dismisses the message for one item or order.
func ClearError(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ClearError(r.Context(), actor, chi.URLParam(r, "entityId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// Activity pages through the journaled dispatch attempts for an order.
func Activity(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		page, err := svc.Activity(r.Context(), actor, chi.URLParam(r, "orderId"), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdvanceStatus moves an item to processing, paid, shipped or delivered.
func AdvanceStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, filters, err := dispatchInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req advanceStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdvanceStatus(r.Context(), actor, filters,
			chi.URLParam(r, "orderId"), chi.URLParam(r, "itemId"),
			enums.LineItemStatus(req.Status),
			validators.SanitizeString(req.TrackingNumber, maxTrackingLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CancelItem cancels one item. The body and its reason are optional.
func CancelItem(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, filters, err := dispatchInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req cancelItemRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.CancelItem(r.Context(), actor, filters,
			chi.URLParam(r, "orderId"), chi.URLParam(r, "itemId"),
			validators.SanitizeString(req.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConfirmPaymentCollection marks the cash for a delivered item as collected.
func ConfirmPaymentCollection(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, filters, err := dispatchInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPaymentCollection(r.Context(), actor, filters,
			chi.URLParam(r, "orderId"), chi.URLParam(r, "itemId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AddTracking attaches a tracking number to an order. A blank number answers with
// outcome "skipped" and the current view.
func AddTracking(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order desk unavailable"))
			return
		}
		actor, filters, err := dispatchInputs(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addTrackingRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.AddTracking(r.Context(), actor, filters,
			chi.URLParam(r, "orderId"),
			validators.SanitizeString(req.TrackingNumber, maxTrackingLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func dispatchInputs(r *http.Request) (internalorders.Actor, internalorders.Filters, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return internalorders.Actor{}, internalorders.Filters{}, err
	}
	filters, err := parseFilters(r)
	if err != nil {
		return internalorders.Actor{}, internalorders.Filters{}, err
	}
	return actor, filters, nil
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return actor, nil
}

// parseFilters reads status, from and to. Dispatch routes take the same parameters so the
// view they answer with matches the page the seller is looking at.
func parseFilters(r *http.Request) (internalorders.Filters, error) {
	var filters internalorders.Filters
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseSubOrderStatus(strings.ToLower(raw))
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
				WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}
	from, err := validators.ParseQueryDate(r, "from")
	if err != nil {
		return filters, err
	}
	to, err := validators.ParseQueryDate(r, "to")
	if err != nil {
		return filters, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from").
			WithDetails(map[string]any{"field": "to"})
	}
	filters.From = from
	filters.To = to
	return filters, nil
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
