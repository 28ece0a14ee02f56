// Package env reads raw environment values for the few settings needed
// before the typed config is loaded, like log formatting.
package env

import "os"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
