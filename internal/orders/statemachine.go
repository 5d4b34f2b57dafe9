package orders

import "github.com/angelmondragon/orderflow-backend/pkg/enums"

// transitions is the closed table of legal status moves. Statuses absent as
// keys have no outgoing edges.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {enums.OrderStatusConfirmed, enums.OrderStatusCancelled, enums.OrderStatusOutOfStock},
	enums.OrderStatusConfirmed:      {enums.OrderStatusProcessing, enums.OrderStatusOnHold, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing:     {enums.OrderStatusCompleted, enums.OrderStatusReturned, enums.OrderStatusOnHold, enums.OrderStatusCancelled},
	enums.OrderStatusOnHold:         {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusOutOfStock:     {enums.OrderStatusPendingPayment, enums.OrderStatusCancelled},
	enums.OrderStatusReturned:       {enums.OrderStatusRefunded},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStates returns a copy of the legal targets of from.
func NextStates(from enums.OrderStatus) []enums.OrderStatus {
	next := transitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// IsTerminal is true for COMPLETED, CANCELLED, REFUNDED and RETURNED.
// RETURNED still has the REFUNDED edge; it is terminal for fulfilment.
func IsTerminal(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusCompleted, enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusReturned:
		return true
	default:
		return false
	}
}

// RequiresAdmin reports whether only admin or system actors may move an
// order into status. Customers can only cancel.
func RequiresAdmin(status enums.OrderStatus) bool {
	return status.IsValid() && status != enums.OrderStatusCancelled
}

// RequiresPayment lists the targets gated on paymentStatus PAID.
func RequiresPayment(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// CanCancel covers every status a cancellation request is accepted from.
// PROCESSING orders are cancelled through an explicit status update.
func CanCancel(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPendingPayment, enums.OrderStatusConfirmed, enums.OrderStatusOnHold, enums.OrderStatusOutOfStock:
		return true
	default:
		return false
	}
}

func CanRefund(status enums.OrderStatus) bool {
	return status == enums.OrderStatusReturned
}

func CanRate(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCompleted
}

// Path returns the shortest chain of legal moves from from to to, excluding
// from itself. It is empty when to is unreachable or equal to from.
func Path(from, to enums.OrderStatus) []enums.OrderStatus {
	if from == to {
		return nil
	}
	prev := map[enums.OrderStatus]enums.OrderStatus{from: from}
	queue := []enums.OrderStatus{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range transitions[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				var path []enums.OrderStatus
				for step := to; step != from; step = prev[step] {
					path = append([]enums.OrderStatus{step}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}
