package enums

import (
	"fmt"
	"strings"
)

// SyncMode selects how a view catches up after a successful dispatch.
type SyncMode string

const (
	// SyncModeRefetch reloads the whole view from the backend.
	SyncModeRefetch SyncMode = "refetch"
	// SyncModePatch applies the server-confirmed suborder and reloads only on conflict.
	SyncModePatch SyncMode = "patch"
)

// String implements fmt.Stringer.
func (s SyncMode) String() string {
	return string(s)
}

// ParseSyncMode converts raw input into a SyncMode, defaulting to refetch when blank.
func ParseSyncMode(value string) (SyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(SyncModeRefetch):
		return SyncModeRefetch, nil
	case string(SyncModePatch):
		return SyncModePatch, nil
	default:
		return "", fmt.Errorf("invalid sync mode %q", value)
	}
}
