package models

import "time"

// Subscription plans
const (
	PlanUnset   = ""
	PlanFree    = "free"
	PlanPremium = "premium"
)

// PlanRecord tracks a user's plan and daily usage. UsageCount is only
// meaningful relative to UsageDate; readers must reconcile the date before
// consuming or checking the counter.
type PlanRecord struct {
	Plan       string    `json:"plan"`
	UsageDate  string    `json:"usage_date"` // YYYY-MM-DD in the bot's local day
	UsageCount int       `json:"usage_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasPlan returns true once the user has picked a plan
func (r *PlanRecord) HasPlan() bool {
	return r != nil && (r.Plan == PlanFree || r.Plan == PlanPremium)
}

// IsPremium returns true for plans with unlimited daily usage
func (r *PlanRecord) IsPremium() bool {
	return r != nil && r.Plan == PlanPremium
}

// ValidPlan reports whether s names a selectable plan
func ValidPlan(s string) bool {
	return s == PlanFree || s == PlanPremium
}
