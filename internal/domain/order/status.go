package order

// Status represents the lifecycle status of an order
type Status string

const (
	StatusPendingPayment  Status = "PENDING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusCancelled       Status = "CANCELLED"
	StatusClosed          Status = "CLOSED"
	StatusRefundRequested Status = "REFUND_REQUESTED"
	StatusRefunded        Status = "REFUNDED"
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusShipped, StatusDelivered,
		StatusCancelled, StatusClosed, StatusRefundRequested, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPendingPayment:
		return target == StatusPaid || target == StatusCancelled || target == StatusClosed
	case StatusPaid:
		return target == StatusShipped || target == StatusRefundRequested || target == StatusClosed
	case StatusShipped:
		return target == StatusDelivered
	case StatusRefundRequested:
		return target == StatusRefunded
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusClosed || s == StatusRefunded
}

// IsPreShipment reports whether the parcel has not left yet
func (s Status) IsPreShipment() bool {
	return s == StatusPendingPayment || s == StatusPaid
}

// EventSource records who triggered a transition
type EventSource string

const (
	SourceUser            EventSource = "USER"
	SourceAdmin           EventSource = "ADMIN"
	SourceSystem          EventSource = "SYSTEM"
	SourceScheduler       EventSource = "SCHEDULER"
	SourcePaymentCallback EventSource = "PAYMENT_CALLBACK"
)

// Source tells where the order lines came from
type Source string

const (
	SourceDirect Source = "DIRECT"
	SourceCart   Source = "CART"
)
