package enums

import "fmt"

// AnalyticsEventType is the storefront interaction being counted.
type AnalyticsEventType string

const (
	AnalyticsEventImpression AnalyticsEventType = "impression"
	AnalyticsEventClick      AnalyticsEventType = "click"
	AnalyticsEventAddToCart  AnalyticsEventType = "add_to_cart"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventImpression,
	AnalyticsEventClick,
	AnalyticsEventAddToCart,
}

func (a AnalyticsEventType) String() string {
	return string(a)
}

// IsValid reports whether the value is a tracked event type.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts the raw string to AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}

// AnalyticsEventTypes returns the accepted values in display order.
func AnalyticsEventTypes() []AnalyticsEventType {
	out := make([]AnalyticsEventType, len(validAnalyticsEventTypes))
	copy(out, validAnalyticsEventTypes)
	return out
}
