package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

const proxySignatureParam = "signature"

var (
	ErrMissingSignature = errors.New("app proxy signature missing")
	ErrInvalidSignature = errors.New("app proxy signature mismatch")
)

// VerifyProxySignature checks the signature query parameter the storefront
// proxy appends to every forwarded request.
func VerifyProxySignature(apiSecret string, query url.Values) error {
	provided := strings.TrimSpace(query.Get(proxySignatureParam))
	if provided == "" {
		return ErrMissingSignature
	}
	expected := ProxySignature(apiSecret, query)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(provided))) {
		return ErrInvalidSignature
	}
	return nil
}

// ProxySignature computes the hex HMAC-SHA256 over the sorted key=value
// pairs, excluding the signature itself. Repeated keys join with commas.
func ProxySignature(apiSecret string, query url.Values) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		if key == proxySignatureParam {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strings.Join(query[key], ","))
	}

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}
