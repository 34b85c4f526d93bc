package shopify

import (
	"fmt"
	"regexp"
	"strings"
)

const productGIDPrefix = "gid://shopify/Product/"

var shopDomainRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// NormalizeShopDomain lowercases and validates a myshopify domain.
func NormalizeShopDomain(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimSuffix(shop, "/")
	if !shopDomainRe.MatchString(shop) {
		return "", fmt.Errorf("invalid shop domain %q", raw)
	}
	return shop, nil
}

// ProductGID turns a bare numeric id into a product global id. Values that
// already carry a gid prefix pass through untouched.
func ProductGID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || strings.HasPrefix(trimmed, "gid://") {
		return trimmed
	}
	return productGIDPrefix + trimmed
}

// LegacyProductID returns the trailing numeric segment of a product gid.
func LegacyProductID(gid string) string {
	trimmed := strings.TrimSpace(gid)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
