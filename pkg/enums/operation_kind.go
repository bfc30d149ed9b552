package enums

import "fmt"

// OperationKind identifies a state-changing call issued against the marketplace backend.
type OperationKind string

const (
	OperationAdvanceStatus            OperationKind = "advance_status"
	OperationCancelItem               OperationKind = "cancel_item"
	OperationAddTracking              OperationKind = "add_tracking"
	OperationConfirmPaymentCollection OperationKind = "confirm_payment_collection"
)

var validOperationKinds = []OperationKind{
	OperationAdvanceStatus,
	OperationCancelItem,
	OperationAddTracking,
	OperationConfirmPaymentCollection,
}

// String implements fmt.Stringer.
func (o OperationKind) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OperationKind.
func (o OperationKind) IsValid() bool {
	for _, candidate := range validOperationKinds {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperationKind converts raw input into an OperationKind.
func ParseOperationKind(value string) (OperationKind, error) {
	for _, candidate := range validOperationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation kind %q", value)
}
