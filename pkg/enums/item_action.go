package enums

// ItemAction is a control a dashboard may offer for a line item.
type ItemAction string

const (
	ItemActionProcess        ItemAction = "process"
	ItemActionCancel         ItemAction = "cancel"
	ItemActionMarkShipped    ItemAction = "mark_shipped"
	ItemActionMarkDelivered  ItemAction = "mark_delivered"
	ItemActionConfirmPayment ItemAction = "confirm_payment"
)

var validItemActions = []ItemAction{
	ItemActionProcess,
	ItemActionCancel,
	ItemActionMarkShipped,
	ItemActionMarkDelivered,
	ItemActionConfirmPayment,
}

// String implements fmt.Stringer.
func (a ItemAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ItemAction.
func (a ItemAction) IsValid() bool {
	for _, candidate := range validItemActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// Label returns the button text dashboards render for the action.
func (a ItemAction) Label() string {
	switch a {
	case ItemActionProcess:
		return "Process"
	case ItemActionCancel:
		return "Cancel"
	case ItemActionMarkShipped:
		return "Mark Shipped"
	case ItemActionMarkDelivered:
		return "Mark Delivered"
	case ItemActionConfirmPayment:
		return "Confirm Payment"
	default:
		return string(a)
	}
}

// Operation returns the dispatcher operation that carries out the action.
func (a ItemAction) Operation() OperationKind {
	switch a {
	case ItemActionCancel:
		return OperationCancelItem
	case ItemActionConfirmPayment:
		return OperationConfirmPaymentCollection
	default:
		return OperationAdvanceStatus
	}
}
