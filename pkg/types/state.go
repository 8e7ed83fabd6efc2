package types

// Insight action constants for PerformAction requests.
const (
	ActionDismiss  = "dismiss"
	ActionRestore  = "restore"
	ActionPin      = "pin"
	ActionUnpin    = "unpin"
	ActionMarkDone = "mark_done"
)

// ValidInsightActions contains all valid action values
var ValidInsightActions = []string{
	ActionDismiss,
	ActionRestore,
	ActionPin,
	ActionUnpin,
	ActionMarkDone,
}

// IsValidInsightAction checks if the given action is a valid insight action.
func IsValidInsightAction(action string) bool {
	for _, validAction := range ValidInsightActions {
		if action == validAction {
			return true
		}
	}
	return false
}

// StatusForAction maps an action to the status it transitions the insight
// into. Returns false for unknown actions.
func StatusForAction(action string) (InsightStatus, bool) {
	switch action {
	case ActionDismiss:
		return InsightDismissed, true
	case ActionRestore:
		return InsightNew, true
	case ActionPin:
		return InsightPinned, true
	case ActionUnpin:
		return InsightViewed, true
	case ActionMarkDone:
		return InsightActioned, true
	default:
		return "", false
	}
}

// IsValidInsightTransition validates insight status transitions according to
// the review state machine.
//
// Valid transitions:
//
//	new -> viewed (automatic on first individual read)
//	new | viewed -> dismissed
//	new | viewed -> pinned
//	new | viewed -> actioned (todo-derived types only; caller enforces)
//	pinned -> viewed (unpin)
//	dismissed -> new (restore)
//	actioned -> (terminal, no transitions out)
func IsValidInsightTransition(current, next InsightStatus) bool {
	if next == "" {
		return false
	}

	switch current {
	case InsightNew:
		return next == InsightViewed || next == InsightDismissed ||
			next == InsightPinned || next == InsightActioned

	case InsightViewed:
		return next == InsightDismissed || next == InsightPinned ||
			next == InsightActioned

	case InsightPinned:
		return next == InsightViewed

	case InsightDismissed:
		return next == InsightNew

	case InsightActioned:
		return false // Terminal state, no transitions out

	default:
		return false // Unknown current status
	}
}
