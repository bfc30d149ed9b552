package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-orderdesk/pkg/env"
)

// GetID returns the process instance identifier used to tag worker logs and lock owners:
// ORDERDESK_INSTANCE_ID, else the host name.
func GetID() string {
	if id := env.Get("INSTANCE_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "orderdesk-0"
}
