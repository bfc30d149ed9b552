package env

import (
	"os"
	"strings"
)

// Prefix namespaces every order desk variable, matching the envconfig prefix.
const Prefix = "ORDERDESK_"

// Get returns ORDERDESK_<key>, then the bare key, then fallback. Blank values count as
// unset so an empty line in .env does not override a default.
func Get(key, fallback string) string {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
