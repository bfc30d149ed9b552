package desk

import (
	"time"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/inflight"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/viewcache"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

const notAvailable = "not available"

// Control is one action button offered for an item.
type Control struct {
	Action    enums.ItemAction     `json:"action"`
	Label     string               `json:"label"`
	Operation enums.OperationKind  `json:"operation"`
	Target    enums.LineItemStatus `json:"target_status,omitempty"`
	Busy      bool                 `json:"busy"`
}

// ViewItem is an aggregated item with everything a dashboard row needs.
type ViewItem struct {
	orders.AggregatedItem
	EffectiveStatus enums.LineItemStatus `json:"effective_status"`
	Terminal        bool                 `json:"terminal"`
	Controls        []Control            `json:"controls"`
	Busy            bool                 `json:"busy"`
	Error           string               `json:"error,omitempty"`
	Version         uint64               `json:"version"`
}

// CustomerLabels are the display strings for the order customer, filled with a
// placeholder when the parent order did not carry a populated user.
type CustomerLabels struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ViewOrder is one aggregated order as a dashboard renders it.
type ViewOrder struct {
	orders.AggregatedOrder
	CustomerLabels CustomerLabels `json:"customer_labels"`
	Items          []ViewItem     `json:"items"`
	TrackingBusy   bool           `json:"tracking_busy"`
	TrackingError  string         `json:"tracking_error,omitempty"`
}

// ViewFilters echoes the filters the view was built for.
type ViewFilters struct {
	Status *enums.SubOrderStatus `json:"status,omitempty"`
	From   *string               `json:"from,omitempty"`
	To     *string               `json:"to,omitempty"`
}

// View is the complete, serializable state of one order page for one actor and filter set.
type View struct {
	Actor      enums.ActorKind   `json:"actor"`
	ReadOnly   bool              `json:"read_only"`
	Filters    ViewFilters       `json:"filters"`
	Orders     []ViewOrder       `json:"orders"`
	Errors     map[string]string `json:"errors"`
	Generation uint64            `json:"generation"`
	FetchedAt  time.Time         `json:"fetched_at"`
}

var itemOperations = []enums.OperationKind{
	enums.OperationAdvanceStatus,
	enums.OperationCancelItem,
	enums.OperationConfirmPaymentCollection,
}

// busyKeys lists every in-flight key a snapshot can show as busy.
func busyKeys(snapshot viewcache.Snapshot) []inflight.Key {
	keys := []inflight.Key{}
	for _, order := range snapshot.Orders {
		keys = append(keys, inflight.Key{EntityID: order.OrderID, Op: enums.OperationAddTracking})
		for _, item := range order.Items {
			for _, op := range itemOperations {
				keys = append(keys, inflight.Key{EntityID: item.Key, Op: op})
			}
		}
	}
	return keys
}

func buildView(actor orders.Actor, filters orders.Filters, snapshot viewcache.Snapshot, busy map[inflight.Key]bool, errs map[string]string) View {
	readOnly := actor.Kind != enums.ActorKindSeller
	if errs == nil {
		errs = map[string]string{}
	}

	view := View{
		Actor:      actor.Kind,
		ReadOnly:   readOnly,
		Filters:    viewFilters(filters),
		Orders:     make([]ViewOrder, 0, len(snapshot.Orders)),
		Errors:     errs,
		Generation: snapshot.Generation,
		FetchedAt:  snapshot.CommittedAt,
	}

	for _, order := range snapshot.Orders {
		vo := ViewOrder{
			AggregatedOrder: order,
			CustomerLabels:  customerLabels(order.Customer),
			Items:           make([]ViewItem, 0, len(order.Items)),
			TrackingBusy:    busy[inflight.Key{EntityID: order.OrderID, Op: enums.OperationAddTracking}],
			TrackingError:   errs[order.OrderID],
		}
		for _, item := range order.Items {
			vi := ViewItem{
				AggregatedItem:  item,
				EffectiveStatus: item.EffectiveStatus(),
				Terminal:        orders.IsTerminal(item.LineItem),
				Controls:        []Control{},
				Error:           errs[item.Key],
				Version:         snapshot.Version(viewcache.ItemRef{OrderID: order.OrderID, ItemKey: item.Key}),
			}
			for _, op := range itemOperations {
				if busy[inflight.Key{EntityID: item.Key, Op: op}] {
					vi.Busy = true
				}
			}
			if !readOnly {
				for _, action := range orders.Actions(item.LineItem) {
					target, _ := orders.TargetStatus(action)
					op := action.Operation()
					vi.Controls = append(vi.Controls, Control{
						Action:    action,
						Label:     action.Label(),
						Operation: op,
						Target:    target,
						Busy:      busy[inflight.Key{EntityID: item.Key, Op: op}],
					})
				}
			}
			vo.Items = append(vo.Items, vi)
		}
		view.Orders = append(view.Orders, vo)
	}
	return view
}

func customerLabels(customer *orders.Customer) CustomerLabels {
	labels := CustomerLabels{
		Name:  "Name " + notAvailable,
		Email: "Email " + notAvailable,
		Phone: "Phone " + notAvailable,
	}
	if customer == nil {
		return labels
	}
	if customer.Name != "" {
		labels.Name = customer.Name
	}
	if customer.Email != "" {
		labels.Email = customer.Email
	}
	if customer.Phone != "" {
		labels.Phone = customer.Phone
	}
	return labels
}

func viewFilters(filters orders.Filters) ViewFilters {
	out := ViewFilters{Status: filters.Status}
	if filters.From != nil {
		from := filters.From.UTC().Format(time.DateOnly)
		out.From = &from
	}
	if filters.To != nil {
		to := filters.To.UTC().Format(time.DateOnly)
		out.To = &to
	}
	return out
}
