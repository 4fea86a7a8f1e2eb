package domain

// Status is the lifecycle status of a ServiceRequest.
type Status string

// Lifecycle statuses. Completed and Declined are terminal; Cancelled is
// reachable from every non-terminal status.
const (
	StatusPending    Status = "pending"
	StatusProposal   Status = "proposal"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeclined   Status = "declined"
	StatusCancelled  Status = "cancelled"
)

// transitions is the legal status transition table. A request may only move
// along these edges; everything else is an invalid-state error at the service
// layer.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProposal, StatusAccepted, StatusDeclined, StatusCancelled},
	StatusProposal:   {StatusInProgress, StatusPending, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusDeclined:   {},
	StatusCancelled:  {},
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether moving from s to next is a legal edge in the
// lifecycle table.
func (s Status) CanTransition(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses for which a service-linked chat is still
// surfaced in chat listings. Mirrors the status filter applied when listing
// a user's conversations.
var ActiveStatuses = []Status{StatusPending, StatusAccepted, StatusInProgress}
