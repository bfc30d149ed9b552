package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

// Tokens minted before the actor claim existed carry only a store id; a store means a seller.
func defaultActor(storeID *uuid.UUID) enums.ActorKind {
	if storeID != nil && *storeID != uuid.Nil {
		return enums.ActorKindSeller
	}
	return enums.ActorKindBuyer
}
