package enums

import (
	"fmt"
	"strings"
)

// LineItemStatus tracks the fulfillment state of a single line item.
type LineItemStatus string

const (
	LineItemStatusPending   LineItemStatus = "pending"
	LineItemStatusPaid      LineItemStatus = "paid"
	LineItemStatusShipped   LineItemStatus = "shipped"
	LineItemStatusDelivered LineItemStatus = "delivered"
	LineItemStatusCancelled LineItemStatus = "cancelled"
	LineItemStatusCompleted LineItemStatus = "completed"
)

// LineItemStatusProcessing is the label used by dashboards for the step after pending.
// Items have no processing state; it is sent to the backend as paid.
const LineItemStatusProcessing LineItemStatus = "processing"

var validLineItemStatuses = []LineItemStatus{
	LineItemStatusPending,
	LineItemStatusPaid,
	LineItemStatusShipped,
	LineItemStatusDelivered,
	LineItemStatusCancelled,
	LineItemStatusCompleted,
}

// String implements fmt.Stringer.
func (l LineItemStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LineItemStatus.
func (l LineItemStatus) IsValid() bool {
	for _, candidate := range validLineItemStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// OrDefault returns pending for an absent status.
func (l LineItemStatus) OrDefault() LineItemStatus {
	if l == "" {
		return LineItemStatusPending
	}
	return l
}

// ParseLineItemStatus converts raw input into a LineItemStatus. Case and surrounding space
// are ignored, and the processing label is accepted alongside the stored statuses.
func ParseLineItemStatus(value string) (LineItemStatus, error) {
	normalized := LineItemStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == LineItemStatusProcessing {
		return normalized, nil
	}
	for _, candidate := range validLineItemStatuses {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item status %q", value)
}
