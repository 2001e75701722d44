package instance

import "os"

const envInstanceID = "LESSONLEDGER_INSTANCE_ID"

// GetID identifies this process in logs and lock ownership. It prefers the
// explicit instance id, then the host name.
func GetID() string {
	if id := os.Getenv(envInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
