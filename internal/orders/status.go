package orders

type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
	StatusError           Status = "error"
)

// validNext is forward-only: once an order reaches a terminal status no
// transition may move it back.
var validNext = map[Status]map[Status]bool{
	StatusCreated:         {StatusAwaitingPayment: true, StatusError: true},
	StatusAwaitingPayment: {StatusApproved: true, StatusRejected: true, StatusExpired: true},
	StatusApproved:        {},
	StatusRejected:        {},
	StatusExpired:         {},
	StatusError:           {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}
