package tenantdb

import (
	"regexp"
	"strings"
)

// maxIdentifierBytes is the PostgreSQL identifier length limit. Names longer
// than this are silently truncated by the server, so derivation truncates
// first to keep the mapping deterministic.
const maxIdentifierBytes = 63

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// ShortTenantID returns the first delimiter-separated segment of a tenant
// identity, lowercased and stripped to alphanumerics. Only this segment is
// used in database names to respect the identifier length ceiling.
func ShortTenantID(tenantID string) string {
	id := strings.ToLower(strings.TrimSpace(tenantID))
	if i := strings.Index(id, "-"); i >= 0 {
		id = id[:i]
	}
	return nonAlphanumeric.ReplaceAllString(id, "")
}

// NormalizePrefix converts a merchant/business name into a database name
// prefix: lowercased, runs of non-alphanumeric characters collapsed to a
// single underscore, with a trailing underscore separator. Returns "" when
// nothing usable remains, in which case callers fall back to the default
// prefix.
func NormalizePrefix(merchantName string) string {
	name := strings.ToLower(strings.TrimSpace(merchantName))
	if name == "" {
		return ""
	}
	name = nonAlphanumeric.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return ""
	}
	return name + "_"
}

// DatabaseName derives the physical database name for a tenant identity
// under the given prefix. The result is deterministic for a (prefix,
// tenantID) pair and never exceeds the identifier limit.
func DatabaseName(prefix, tenantID string) string {
	name := prefix + ShortTenantID(tenantID)
	if len(name) > maxIdentifierBytes {
		name = name[:maxIdentifierBytes]
	}
	return name
}
