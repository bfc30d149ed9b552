package enums

// DispatchOutcome records how a dispatch attempt ended.
type DispatchOutcome string

const (
	DispatchOutcomeSucceeded DispatchOutcome = "succeeded"
	DispatchOutcomeFailed    DispatchOutcome = "failed"
	DispatchOutcomeSkipped   DispatchOutcome = "skipped"
	DispatchOutcomeConflict  DispatchOutcome = "conflict"
)

// String implements fmt.Stringer.
func (d DispatchOutcome) String() string {
	return string(d)
}
