package models

// transitionMap lists the allowed source statuses for each target status.
// Transfers bypass this table: they force waiting from any non-terminal
// status through a dedicated operation.
var transitionMap = map[Status][]Status{
	StatusServing:   {StatusWaiting},
	StatusCompleted: {StatusServing},
	StatusCancelled: {StatusWaiting},
}

// ValidTransition reports whether a ticket may move from one status to
// another.
func ValidTransition(from, to Status) bool {
	allowed, ok := transitionMap[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}
