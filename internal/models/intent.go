package models

// IntentKind identifies which capability should handle an inbound message
type IntentKind string

// Intent kinds, in rough order of classifier precedence
const (
	IntentReset             IntentKind = "reset"
	IntentSelectPlanFree    IntentKind = "select_plan_free"
	IntentSelectPlanPremium IntentKind = "select_plan_premium"
	IntentImage             IntentKind = "image"
	IntentAnalyzeImage      IntentKind = "analyze_image"
	IntentWebSearch         IntentKind = "web_search"
	IntentChat              IntentKind = "chat"
)

// IntentDecision is the classifier's verdict for one inbound message.
// Payload carries the capability input: the image prompt for IntentImage,
// the LINE message ID for IntentAnalyzeImage, the raw text otherwise.
// Decisions are transient; they are consumed by the dispatcher and never stored.
type IntentDecision struct {
	Kind    IntentKind
	Payload string
}

// ConsumesQuota reports whether dispatching this intent counts against the
// user's daily usage. Reset and plan selection are always free.
func (d IntentDecision) ConsumesQuota() bool {
	switch d.Kind {
	case IntentReset, IntentSelectPlanFree, IntentSelectPlanPremium:
		return false
	default:
		return true
	}
}
