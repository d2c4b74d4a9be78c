// Package validate provides input validation for API path and query parameters.
package validate

// ContainerIDMaxLen bounds containerId from paths and query params. Docker ids
// are 64 hex chars but the engine also accepts names and short ids, so the
// check stays permissive: printable, no path separators, bounded length.
const ContainerIDMaxLen = 128

// ContainerID validates an opaque container identifier: alphanumeric, hyphen,
// underscore, dot; 1 to ContainerIDMaxLen characters.
func ContainerID(id string) bool {
	if id == "" || len(id) > ContainerIDMaxLen {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}

// UserID validates a user id path parameter (uuid or external subject id).
func UserID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}
