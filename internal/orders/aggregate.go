package orders

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

// Aggregate groups suborders by parent order. Order-level metadata comes from the first
// suborder seen for each parent; suborders and items keep arrival order. Suborders with no
// resolvable parent are skipped.
func Aggregate(subOrders []SubOrder) []AggregatedOrder {
	index := make(map[string]int, len(subOrders))
	keys := make(map[string]*ItemKeys, len(subOrders))
	out := make([]AggregatedOrder, 0, len(subOrders))

	for _, sub := range subOrders {
		parentID := sub.ParentID()
		if parentID == "" {
			continue
		}

		pos, seen := index[parentID]
		if !seen {
			out = append(out, seed(parentID, sub.Order))
			pos = len(out) - 1
			index[parentID] = pos
			keys[parentID] = &ItemKeys{}
		}
		agg := &out[pos]

		agg.SubOrders = append(agg.SubOrders, SubOrderSummary{
			ID:        sub.ID,
			Seller:    sub.Seller,
			Status:    sub.Status,
			Items:     sub.Items,
			CreatedAt: sub.CreatedAt,
		})
		for _, item := range sub.Items {
			agg.Items = append(agg.Items, AggregatedItem{
				LineItem:    item,
				Key:         keys[parentID].Next(item),
				MainOrderID: parentID,
				SubOrderID:  sub.ID,
			})
		}
	}

	for i := range out {
		out[i].Summary = Summarize(out[i].Items)
	}
	return out
}

func seed(parentID string, parent *ParentOrder) AggregatedOrder {
	agg := AggregatedOrder{
		OrderID:         parentID,
		TrackingNumbers: []string{},
		SubOrders:       []SubOrderSummary{},
		Items:           []AggregatedItem{},
	}
	if parent == nil {
		return agg
	}
	if parent.User.Populated {
		agg.Customer = &Customer{
			Name:  parent.User.Name,
			Email: parent.User.Email,
			Phone: parent.User.Phone,
		}
	}
	agg.OrderStatus = parent.OrderStatus
	agg.PaymentStatus = parent.PaymentStatus
	agg.TotalAmount = parent.TotalAmount
	agg.ShippingAddress = parent.ShippingAddress
	if len(parent.TrackingNumbers) > 0 {
		agg.TrackingNumbers = append(agg.TrackingNumbers, parent.TrackingNumbers...)
	}
	return agg
}

// Summarize adds up the money fields of items that were not cancelled.
func Summarize(items []AggregatedItem) Summary {
	summary := Summary{
		Subtotal:    decimal.Zero,
		ShippingFee: decimal.Zero,
		TaxAmount:   decimal.Zero,
		Total:       decimal.Zero,
	}
	for _, item := range items {
		if item.EffectiveStatus() == enums.LineItemStatusCancelled {
			continue
		}
		summary.ItemCount++
		summary.Subtotal = summary.Subtotal.Add(item.LineSubtotal())
		if item.ShippingFee.Valid {
			summary.ShippingFee = summary.ShippingFee.Add(item.ShippingFee.Decimal)
		}
		if item.TaxAmount.Valid {
			summary.TaxAmount = summary.TaxAmount.Add(item.TaxAmount.Decimal)
		}
	}
	summary.Total = summary.Subtotal.Add(summary.ShippingFee).Add(summary.TaxAmount)
	return summary
}
