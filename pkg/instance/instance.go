package instance

import "os"

// GetID returns the identifier for this storefront instance, used to
// tell replicas apart in logs. Defaults when the env is unset.
func GetID() string {
	if id := os.Getenv("LUNEBOX_INSTANCE_ID"); id != "" {
		return id
	}
	return "storefront-0"
}
