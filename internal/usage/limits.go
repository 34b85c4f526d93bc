package usage

import "github.com/angelmondragon/easyrecs-backend/pkg/enums"

// Unlimited marks plans without a quota.
const Unlimited int64 = -1

var planLimits = map[enums.Plan]int64{
	enums.PlanFree:       100,
	enums.PlanStandard:   1000,
	enums.PlanEnterprise: Unlimited,
}

// LimitFor returns the per-cycle quota for plan. Unknown plans get the free
// quota.
func LimitFor(plan enums.Plan) int64 {
	if limit, ok := planLimits[plan]; ok {
		return limit
	}
	return planLimits[enums.PlanFree]
}
