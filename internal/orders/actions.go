package orders

import "github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"

// Actions returns the controls a seller dashboard offers for an item. The result depends
// only on the item status and its payment collection flag. It is a rendering rule: the
// backend stays the judge of which transitions are legal.
func Actions(item LineItem) []enums.ItemAction {
	switch item.EffectiveStatus() {
	case enums.LineItemStatusPending:
		return []enums.ItemAction{enums.ItemActionProcess, enums.ItemActionCancel}
	case enums.LineItemStatusPaid:
		return []enums.ItemAction{enums.ItemActionMarkShipped, enums.ItemActionCancel}
	case enums.LineItemStatusShipped:
		return []enums.ItemAction{enums.ItemActionMarkDelivered}
	case enums.LineItemStatusDelivered:
		if item.PaymentCollectionStatus.IsCollected() {
			return nil
		}
		return []enums.ItemAction{enums.ItemActionConfirmPayment}
	case enums.LineItemStatusCancelled, enums.LineItemStatusCompleted:
		return nil
	default:
		// unrecognized status
		return nil
	}
}

// IsTerminal reports whether no further seller action exists for the item.
func IsTerminal(item LineItem) bool {
	return len(Actions(item)) == 0
}

// TargetStatus is the wire status an advance action sends. Cancel and payment
// confirmation have their own endpoints and return false.
func TargetStatus(action enums.ItemAction) (enums.LineItemStatus, bool) {
	switch action {
	case enums.ItemActionProcess:
		return enums.LineItemStatusPaid, true
	case enums.ItemActionMarkShipped:
		return enums.LineItemStatusShipped, true
	case enums.ItemActionMarkDelivered:
		return enums.LineItemStatusDelivered, true
	default:
		return "", false
	}
}

// WireStatus maps a requested status onto what the item endpoint accepts. Items have no
// processing state, so processing is sent as paid.
func WireStatus(requested enums.LineItemStatus) (enums.LineItemStatus, bool) {
	switch requested {
	case enums.LineItemStatusProcessing, enums.LineItemStatusPaid:
		return enums.LineItemStatusPaid, true
	case enums.LineItemStatusShipped, enums.LineItemStatusDelivered:
		return requested, true
	default:
		return "", false
	}
}
