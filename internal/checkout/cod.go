package checkout

import (
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// DefaultCODMinCompleted is the number of completed orders that unlocks cash on delivery.
const DefaultCODMinCompleted = 3

// OrderCounts summarises a customer's order history.
type OrderCounts struct {
	Completed  int `json:"completed"`
	InProgress int `json:"in_progress"`
	Cancelled  int `json:"cancelled"`
}

// CODEligibility is derived per request and never stored.
type CODEligibility struct {
	Eligible     bool        `json:"eligible"`
	Counts       OrderCounts `json:"counts"`
	MinCompleted int         `json:"min_completed"`
	Remaining    int         `json:"remaining"`
}

// EvaluateCOD applies the completed-order threshold. Privileged roles are
// always eligible.
func EvaluateCOD(counts OrderCounts, role enums.ActorRole, minCompleted int) CODEligibility {
	if minCompleted <= 0 {
		minCompleted = DefaultCODMinCompleted
	}
	out := CODEligibility{Counts: counts, MinCompleted: minCompleted}
	if role.IsPrivileged() || counts.Completed >= minCompleted {
		out.Eligible = true
		return out
	}
	out.Remaining = minCompleted - counts.Completed
	return out
}
