package finding

import "strings"

// Category is the closed vulnerability category enumeration. Values the
// engine reports outside this set map to CategoryOther rather than being
// rejected, so schema drift between the engine and this core degrades
// gracefully.
type Category string

const (
	CategoryNetwork               Category = "NETWORK"
	CategoryWeb                   Category = "WEB"
	CategorySSLTLS                Category = "SSL_TLS"
	CategoryDNS                   Category = "DNS"
	CategoryConfiguration         Category = "CONFIGURATION"
	CategoryOutdatedSoftware      Category = "OUTDATED_SOFTWARE"
	CategoryInformationDisclosure Category = "INFORMATION_DISCLOSURE"
	CategoryOther                 Category = "OTHER"
)

var knownCategories = map[Category]bool{
	CategoryNetwork:               true,
	CategoryWeb:                   true,
	CategorySSLTLS:                true,
	CategoryDNS:                   true,
	CategoryConfiguration:         true,
	CategoryOutdatedSoftware:      true,
	CategoryInformationDisclosure: true,
	CategoryOther:                 true,
}

// IsValid returns true if the category is part of the closed set.
func (c Category) IsValid() bool {
	return knownCategories[c]
}

// ParseCategory maps an engine-reported category string onto the closed set.
// The second return value is false when the input was unrecognized and the
// OTHER safety net applied; callers log that case so drift stays observable.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if knownCategories[c] {
		return c, true
	}
	return CategoryOther, false
}
