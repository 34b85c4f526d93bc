package enums

import (
	"fmt"
	"strings"
)

// Plan is the subscription tier stored on shops.plan.
type Plan string

const (
	PlanFree       Plan = "Free"
	PlanStandard   Plan = "Standard"
	PlanEnterprise Plan = "Enterprise"
)

var validPlans = []Plan{
	PlanFree,
	PlanStandard,
	PlanEnterprise,
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value matches a known plan.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlan converts the raw string to its canonical Plan, ignoring case and
// surrounding whitespace.
func ParsePlan(value string) (Plan, error) {
	normalized := strings.TrimSpace(value)
	for _, candidate := range validPlans {
		if strings.EqualFold(string(candidate), normalized) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}
