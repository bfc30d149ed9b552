package orders

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

// SubOrder is the per-seller slice of a parent order as returned by the marketplace backend.
type SubOrder struct {
	ID        string               `json:"id"`
	Order     *ParentOrder         `json:"order,omitempty"`
	Seller    SellerRef            `json:"seller"`
	Status    enums.SubOrderStatus `json:"status"`
	Items     []LineItem           `json:"items"`
	CreatedAt *time.Time           `json:"created_at,omitempty"`
}

// ParentOrder is the buyer-level order a SubOrder belongs to. When the backend did not
// populate it only ID is set.
type ParentOrder struct {
	ID              string              `json:"id"`
	User            UserRef             `json:"user"`
	OrderStatus     string              `json:"order_status,omitempty"`
	PaymentStatus   string              `json:"payment_status,omitempty"`
	TotalAmount     decimal.NullDecimal `json:"total_amount"`
	ShippingAddress *Address            `json:"shipping_address,omitempty"`
	TrackingNumbers []string            `json:"tracking_numbers"`
	Populated       bool                `json:"-"`
}

type Address struct {
	FullName   string `json:"full_name,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// UserRef is the buyer behind a parent order.
type UserRef struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Populated bool   `json:"-"`
}

// SellerRef is the store fulfilling a SubOrder.
type SellerRef struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Populated bool   `json:"-"`
}

// ProductRef is the catalog entry a LineItem was bought from.
type ProductRef struct {
	ID        string              `json:"id"`
	Name      string              `json:"name,omitempty"`
	Image     string              `json:"image,omitempty"`
	Price     decimal.NullDecimal `json:"price"`
	Populated bool                `json:"-"`
}

// LineItem is one product line inside a SubOrder.
type LineItem struct {
	ID                      string                        `json:"id,omitempty"`
	Product                 ProductRef                    `json:"product"`
	Quantity                int                           `json:"quantity"`
	Price                   decimal.Decimal               `json:"price"`
	Status                  enums.LineItemStatus          `json:"status,omitempty"`
	PaymentCollectionStatus enums.PaymentCollectionStatus `json:"payment_collection_status,omitempty"`
	Subtotal                decimal.NullDecimal           `json:"subtotal"`
	ShippingFee             decimal.NullDecimal           `json:"shipping_fee"`
	TaxAmount               decimal.NullDecimal           `json:"tax_amount"`
}

// Key identifies the item within a view: its own id, else the product id, else its position.
func (li LineItem) Key(index int) string {
	if li.ID != "" {
		return li.ID
	}
	if li.Product.ID != "" {
		return li.Product.ID
	}
	return strconv.Itoa(index)
}

// ItemKeys hands out item keys for one order in arrival order. A fallback key already taken
// by an earlier id-less item gets the item's position appended, so every item in the order
// stays addressable.
type ItemKeys struct {
	used map[string]bool
	next int
}

// Next returns the key of the following item.
func (k *ItemKeys) Next(li LineItem) string {
	if k.used == nil {
		k.used = make(map[string]bool)
	}
	index := k.next
	k.next++

	key := li.Key(index)
	if li.ID == "" && k.used[key] {
		key = key + "~" + strconv.Itoa(index)
	}
	k.used[key] = true
	return key
}

// EffectiveStatus treats an absent status as pending.
func (li LineItem) EffectiveStatus() enums.LineItemStatus {
	return li.Status.OrDefault()
}

// LineSubtotal is the server subtotal when present, else price times quantity.
func (li LineItem) LineSubtotal() decimal.Decimal {
	if li.Subtotal.Valid {
		return li.Subtotal.Decimal
	}
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// ParentID resolves the parent order id whether the reference was populated or not.
func (s SubOrder) ParentID() string {
	if s.Order == nil {
		return ""
	}
	return s.Order.ID
}

// The marketplace backend speaks camelCase with Mongo-style _id keys and may hand back a
// reference either populated or as a bare id. The wire types below absorb that so the rest
// of the desk only sees the normalized structs above.

type wireSubOrder struct {
	ID        string          `json:"_id"`
	AltID     string          `json:"id"`
	Order     json.RawMessage `json:"order"`
	Seller    SellerRef       `json:"seller"`
	Status    string          `json:"status"`
	Items     []LineItem      `json:"items"`
	CreatedAt *time.Time      `json:"createdAt"`
}

func (s *SubOrder) UnmarshalJSON(data []byte) error {
	var wire wireSubOrder
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	parent, err := decodeParentOrder(wire.Order)
	if err != nil {
		return err
	}

	*s = SubOrder{
		ID:        firstNonEmpty(wire.ID, wire.AltID),
		Order:     parent,
		Seller:    wire.Seller,
		Status:    enums.SubOrderStatus(strings.TrimSpace(wire.Status)),
		Items:     wire.Items,
		CreatedAt: wire.CreatedAt,
	}
	return nil
}

type wireParentOrder struct {
	ID              string              `json:"_id"`
	AltID           string              `json:"id"`
	User            UserRef             `json:"user"`
	OrderStatus     string              `json:"orderStatus"`
	PaymentStatus   string              `json:"paymentStatus"`
	TotalAmount     decimal.NullDecimal `json:"totalAmount"`
	ShippingAddress *wireAddress        `json:"shippingAddress"`
	TrackingNumbers []string            `json:"trackingNumbers"`
}

type wireAddress struct {
	FullName   string `json:"fullName"`
	Street     string `json:"street"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	ZipCode    string `json:"zipCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

func decodeParentOrder(raw json.RawMessage) (*ParentOrder, error) {
	id, isRef, empty := bareReference(raw)
	if empty {
		return nil, nil
	}
	if isRef {
		if id == "" {
			return nil, nil
		}
		return &ParentOrder{ID: id}, nil
	}

	var wire wireParentOrder
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	parentID := firstNonEmpty(wire.ID, wire.AltID)
	if parentID == "" {
		return nil, nil
	}

	parent := &ParentOrder{
		ID:              parentID,
		User:            wire.User,
		OrderStatus:     wire.OrderStatus,
		PaymentStatus:   wire.PaymentStatus,
		TotalAmount:     wire.TotalAmount,
		TrackingNumbers: wire.TrackingNumbers,
		Populated:       true,
	}
	if wire.ShippingAddress != nil {
		parent.ShippingAddress = &Address{
			FullName:   wire.ShippingAddress.FullName,
			Street:     firstNonEmpty(wire.ShippingAddress.Street, wire.ShippingAddress.Address),
			City:       wire.ShippingAddress.City,
			State:      wire.ShippingAddress.State,
			PostalCode: firstNonEmpty(wire.ShippingAddress.PostalCode, wire.ShippingAddress.ZipCode),
			Country:    wire.ShippingAddress.Country,
			Phone:      wire.ShippingAddress.Phone,
		}
	}
	return parent, nil
}

type wireUser struct {
	ID    string `json:"_id"`
	AltID string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (u *UserRef) UnmarshalJSON(data []byte) error {
	id, isRef, empty := bareReference(data)
	if empty {
		*u = UserRef{}
		return nil
	}
	if isRef {
		*u = UserRef{ID: id}
		return nil
	}
	var wire wireUser
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*u = UserRef{
		ID:        firstNonEmpty(wire.ID, wire.AltID),
		Name:      wire.Name,
		Email:     wire.Email,
		Phone:     wire.Phone,
		Populated: true,
	}
	return nil
}

type wireSeller struct {
	ID        string `json:"_id"`
	AltID     string `json:"id"`
	Name      string `json:"name"`
	StoreName string `json:"storeName"`
	Email     string `json:"email"`
}

func (s *SellerRef) UnmarshalJSON(data []byte) error {
	id, isRef, empty := bareReference(data)
	if empty {
		*s = SellerRef{}
		return nil
	}
	if isRef {
		*s = SellerRef{ID: id}
		return nil
	}
	var wire wireSeller
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = SellerRef{
		ID:        firstNonEmpty(wire.ID, wire.AltID),
		Name:      firstNonEmpty(wire.StoreName, wire.Name),
		Email:     wire.Email,
		Populated: true,
	}
	return nil
}

type wireProduct struct {
	ID     string              `json:"_id"`
	AltID  string              `json:"id"`
	Name   string              `json:"name"`
	Image  string              `json:"image"`
	Images []string            `json:"images"`
	Price  decimal.NullDecimal `json:"price"`
}

func (p *ProductRef) UnmarshalJSON(data []byte) error {
	id, isRef, empty := bareReference(data)
	if empty {
		*p = ProductRef{}
		return nil
	}
	if isRef {
		*p = ProductRef{ID: id}
		return nil
	}
	var wire wireProduct
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	image := wire.Image
	if image == "" && len(wire.Images) > 0 {
		image = wire.Images[0]
	}
	*p = ProductRef{
		ID:        firstNonEmpty(wire.ID, wire.AltID),
		Name:      wire.Name,
		Image:     image,
		Price:     wire.Price,
		Populated: true,
	}
	return nil
}

type wireLineItem struct {
	ID                      string              `json:"_id"`
	AltID                   string              `json:"id"`
	Product                 ProductRef          `json:"product"`
	Quantity                int                 `json:"quantity"`
	Price                   decimal.NullDecimal `json:"price"`
	Status                  string              `json:"status"`
	PaymentCollectionStatus string              `json:"paymentCollectionStatus"`
	Subtotal                decimal.NullDecimal `json:"subtotal"`
	ShippingFee             decimal.NullDecimal `json:"shippingFee"`
	TaxAmount               decimal.NullDecimal `json:"taxAmount"`
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var wire wireLineItem
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	price := wire.Price.Decimal
	if !wire.Price.Valid && wire.Product.Price.Valid {
		price = wire.Product.Price.Decimal
	}
	*li = LineItem{
		ID:                      firstNonEmpty(wire.ID, wire.AltID),
		Product:                 wire.Product,
		Quantity:                wire.Quantity,
		Price:                   price,
		Status:                  enums.LineItemStatus(strings.TrimSpace(wire.Status)),
		PaymentCollectionStatus: enums.PaymentCollectionStatus(strings.TrimSpace(wire.PaymentCollectionStatus)),
		Subtotal:                wire.Subtotal,
		ShippingFee:             wire.ShippingFee,
		TaxAmount:               wire.TaxAmount,
	}
	return nil
}

// bareReference classifies a raw reference: empty for absent/null, isRef with the id for a
// JSON string, and neither for an object that needs a full decode.
func bareReference(raw []byte) (id string, isRef bool, empty bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false, true
	}
	if trimmed[0] != '"' {
		return "", false, false
	}
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return "", false, true
	}
	return strings.TrimSpace(id), true, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
