package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

// DispatchAttempt records one transition the desk sent (or refused to send) to the backend.
type DispatchAttempt struct {
	ID             uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	Scope          string                `gorm:"type:text;not null" json:"-"`
	ActorUserID    uuid.UUID             `gorm:"type:uuid;not null" json:"actor_user_id"`
	ActorStoreID   *uuid.UUID            `gorm:"type:uuid" json:"actor_store_id,omitempty"`
	ActorKind      enums.ActorKind       `gorm:"type:text;not null" json:"actor_kind"`
	Operation      enums.OperationKind   `gorm:"type:text;not null" json:"operation"`
	OrderID        string                `gorm:"type:text;not null" json:"order_id"`
	ItemID         *string               `gorm:"type:text" json:"item_id,omitempty"`
	WireStatus     *string               `gorm:"type:text" json:"wire_status,omitempty"`
	TrackingNumber *string               `gorm:"type:text" json:"tracking_number,omitempty"`
	Outcome        enums.DispatchOutcome `gorm:"type:text;not null" json:"outcome"`
	ErrorMessage   *string               `gorm:"type:text" json:"error_message,omitempty"`
	DurationMS     int64                 `gorm:"column:duration_ms;not null" json:"duration_ms"`
	CreatedAt      time.Time             `gorm:"not null" json:"created_at"`
}

func (DispatchAttempt) TableName() string {
	return "dispatch_attempts"
}
