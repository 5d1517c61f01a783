package booking

// transitions is the allowed edge set of the lifecycle graph
var transitions = map[Status][]Status{
	StatusPendingConfirmation: {StatusConfirmed, StatusCanceled},
	StatusConfirmed:           {StatusProviderAssigned, StatusCanceled},
	StatusProviderAssigned:    {StatusEnRoute, StatusCanceled},
	StatusEnRoute:             {StatusInProgress, StatusCanceled},
	StatusInProgress:          {StatusCompleted, StatusCanceled, StatusDisputed},
	StatusCompleted:           {StatusDisputed},
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the states reachable from s in one step
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}
