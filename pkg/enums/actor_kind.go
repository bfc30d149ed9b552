package enums

import "fmt"

// ActorKind describes which side of the marketplace a dashboard user acts for.
type ActorKind string

const (
	ActorKindSeller ActorKind = "seller"
	ActorKindBuyer  ActorKind = "buyer"
)

var validActorKinds = []ActorKind{
	ActorKindSeller,
	ActorKindBuyer,
}

// String implements fmt.Stringer.
func (a ActorKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorKind.
func (a ActorKind) IsValid() bool {
	for _, candidate := range validActorKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorKind converts raw input into an ActorKind.
func ParseActorKind(value string) (ActorKind, error) {
	for _, candidate := range validActorKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor kind %q", value)
}
