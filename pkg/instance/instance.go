package instance

import "os"

const envInstanceID = "TRAILPACK_INSTANCE_ID"

// GetID names the running process in logs. It prefers TRAILPACK_INSTANCE_ID,
// then the platform dyno name, then the host name.
func GetID(fallback string) string {
	for _, key := range []string{envInstanceID, "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
