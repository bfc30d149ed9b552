package orders

import (
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

// Filters describe the inputs supported by the my-suborders query.
type Filters struct {
	Status *enums.SubOrderStatus
	From   *time.Time
	To     *time.Time
}

// Query renders the filters as backend query parameters. Dates are sent as YYYY-MM-DD.
func (f Filters) Query() url.Values {
	values := url.Values{}
	if f.Status != nil {
		values.Set("status", f.Status.String())
	}
	if f.From != nil {
		values.Set("from", f.From.UTC().Format(time.DateOnly))
	}
	if f.To != nil {
		values.Set("to", f.To.UTC().Format(time.DateOnly))
	}
	return values
}

// Actor is the authenticated dashboard user a view or dispatch runs for.
type Actor struct {
	UserID  uuid.UUID
	StoreID *uuid.UUID
	Kind    enums.ActorKind
	Token   string
}

// Scope partitions per-actor state: the store id when present, else the user id.
func (a Actor) Scope() string {
	if a.StoreID != nil && *a.StoreID != uuid.Nil {
		return a.Kind.String() + ":" + a.StoreID.String()
	}
	return a.Kind.String() + ":" + a.UserID.String()
}

// Customer is the contact info taken from a populated parent order user.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SubOrderSummary is the slice of a SubOrder kept on its aggregated parent.
type SubOrderSummary struct {
	ID        string               `json:"id"`
	Seller    SellerRef            `json:"seller"`
	Status    enums.SubOrderStatus `json:"status"`
	Items     []LineItem           `json:"items"`
	CreatedAt *time.Time           `json:"created_at,omitempty"`
}

// AggregatedItem is a LineItem tagged with the parent order and suborder it came from.
type AggregatedItem struct {
	LineItem
	Key         string `json:"key"`
	MainOrderID string `json:"main_order_id"`
	SubOrderID  string `json:"sub_order_id"`
}

// Summary totals the display-only money fields of an order's active items.
type Summary struct {
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// AggregatedOrder groups every SubOrder of one parent order.
type AggregatedOrder struct {
	OrderID         string              `json:"order_id"`
	Customer        *Customer           `json:"customer"`
	OrderStatus     string              `json:"order_status,omitempty"`
	PaymentStatus   string              `json:"payment_status,omitempty"`
	TotalAmount     decimal.NullDecimal `json:"total_amount"`
	ShippingAddress *Address            `json:"shipping_address"`
	TrackingNumbers []string            `json:"tracking_numbers"`
	SubOrders       []SubOrderSummary   `json:"sub_orders"`
	Items           []AggregatedItem    `json:"items"`
	Summary         Summary             `json:"summary"`
}
