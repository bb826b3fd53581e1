package order

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled}
}

// RealizedStatuses lists the statuses that count toward revenue.
func RealizedStatuses() []Status {
	return []Status{StatusConfirmed, StatusShipped, StatusCompleted}
}

// ParseStatus validates s as a known status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + s}
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no other status may follow s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Realized reports whether orders in status s count as revenue.
func (s Status) Realized() bool {
	return s == StatusConfirmed || s == StatusShipped || s == StatusCompleted
}

// CanTransition reports whether an order in status from may move to to.
// Re-applying the current status is always allowed. A non-terminal order may
// move to any status, backwards included, so mistaken updates can be undone.
// Completed and cancelled orders stay where they are.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return from == to || !from.Terminal()
}
