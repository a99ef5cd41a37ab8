package featureflags

import (
	"os"
	"strings"
)

// Known flags
const (
	// AuditReads extends the audit trail to GET requests
	AuditReads = "audit_reads"
)

var lookupEnv = os.Getenv

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := lookupEnv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
