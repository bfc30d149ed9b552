package enums

// PaymentCollectionStatus flags whether cash for a delivered item has been collected.
type PaymentCollectionStatus string

const (
	PaymentCollectionStatusPending   PaymentCollectionStatus = "pending"
	PaymentCollectionStatusCollected PaymentCollectionStatus = "collected"
)

// String implements fmt.Stringer.
func (p PaymentCollectionStatus) String() string {
	return string(p)
}

// IsCollected reports whether the value is exactly collected.
func (p PaymentCollectionStatus) IsCollected() bool {
	return p == PaymentCollectionStatusCollected
}
