package shopify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var sessionSigningMethod = jwt.SigningMethodHS256

// sessionLeeway absorbs clock skew between the admin host and this service.
const sessionLeeway = 5 * time.Second

// SessionClaims are the claims carried by an embedded-admin session token.
type SessionClaims struct {
	Dest string `json:"dest"`
	SID  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ShopDomain extracts the shop from the dest claim.
func (c *SessionClaims) ShopDomain() (string, error) {
	if c == nil || strings.TrimSpace(c.Dest) == "" {
		return "", fmt.Errorf("session token missing dest")
	}
	parsed, err := url.Parse(c.Dest)
	if err != nil {
		return "", fmt.Errorf("parse dest: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = c.Dest
	}
	return NormalizeShopDomain(host)
}

// ParseSessionToken validates signature, audience and time claims. now is
// used as the validation clock.
func ParseSessionToken(apiKey, apiSecret, tokenString string, now time.Time) (*SessionClaims, error) {
	if apiSecret == "" {
		return nil, fmt.Errorf("shopify api secret is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("shopify api key is required")
	}

	claims := &SessionClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{sessionSigningMethod.Alg()}),
		jwt.WithAudience(apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(sessionLeeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != sessionSigningMethod {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		return []byte(apiSecret), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// SignSessionToken issues a session token for shopDomain. Used by local
// tooling and tests; production tokens are minted by the admin host.
func SignSessionToken(apiKey, apiSecret, shopDomain string, now time.Time, ttl time.Duration) (string, error) {
	if apiSecret == "" {
		return "", fmt.Errorf("shopify api secret is required")
	}
	claims := SessionClaims{
		Dest: "https://" + shopDomain,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shopDomain + "/admin",
			Audience:  jwt.ClaimStrings{apiKey},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(sessionSigningMethod, claims).SignedString([]byte(apiSecret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}
