package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// PENDING is the only non-terminal state; a transition out of it is final.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusSuccess: true, StatusFailed: true, StatusCancelled: true},
	StatusSuccess:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}
