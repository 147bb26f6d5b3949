package domain

type (
	// DeliveryStatus represents the lifecycle state of a delivery.
	DeliveryStatus string
	// BidStatus represents the state of a partner's bid.
	BidStatus string
	// ResponseType represents a partner's response to a match notification.
	ResponseType string
	// Priority represents the urgency class of a delivery.
	Priority string
	// RequesterType represents the kind of customer that created a delivery.
	RequesterType string
)

// List of delivery lifecycle states
const (
	StatusCreated   DeliveryStatus = "created"
	StatusMatching  DeliveryStatus = "matching"
	StatusAssigned  DeliveryStatus = "assigned"
	StatusAccepted  DeliveryStatus = "accepted"
	StatusPickedUp  DeliveryStatus = "picked_up"
	StatusInTransit DeliveryStatus = "in_transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusCancelled DeliveryStatus = "cancelled"
	StatusFailed    DeliveryStatus = "failed"
)

// List of bid states
const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidExpired   BidStatus = "expired"
	BidWithdrawn BidStatus = "withdrawn"
)

// List of match notification responses. ResponseNone marks a notification
// that has not been answered yet.
const (
	ResponseNone       ResponseType = ""
	ResponseAccepted   ResponseType = "accepted"
	ResponseRejected   ResponseType = "rejected"
	ResponseTimeout    ResponseType = "timeout"
	ResponseSuperseded ResponseType = "superseded"
)

// List of delivery priorities
const (
	PriorityASAP      Priority = "asap"
	PriorityScheduled Priority = "scheduled"
)

// List of requester types
const (
	RequesterEC  RequesterType = "ec"
	RequesterBC  RequesterType = "bc"
	RequesterDBC RequesterType = "dbc"
)

// transitions is the closed delivery state machine. A status maps to the set
// of statuses it may move into; terminal states map to nothing.
var transitions = map[DeliveryStatus][]DeliveryStatus{
	StatusCreated:   {StatusMatching, StatusCancelled, StatusFailed},
	StatusMatching:  {StatusAssigned, StatusAccepted, StatusCancelled, StatusFailed},
	StatusAssigned:  {StatusAccepted, StatusMatching, StatusCancelled, StatusFailed},
	StatusAccepted:  {StatusPickedUp, StatusCancelled, StatusFailed},
	StatusPickedUp:  {StatusInTransit, StatusCancelled, StatusFailed},
	StatusInTransit: {StatusDelivered, StatusCancelled, StatusFailed},
	StatusDelivered: nil,
	StatusCancelled: nil,
	StatusFailed:    nil,
}

// MATCHING→ACCEPTED above is the collapsed MATCHING→ASSIGNED→ACCEPTED pair
// written by bid-window closure: winning a bid implies commitment, so no
// separate accept step exists.

// Valid checks if the DeliveryStatus is a known state.
func (s DeliveryStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are accepted from s.
func (s DeliveryStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether s may move to the given status.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	for _, v := range transitions[s] {
		if v == to {
			return true
		}
	}
	return false
}

var allowedBidStatuses = [...]BidStatus{
	BidPending, BidAccepted, BidRejected, BidExpired, BidWithdrawn,
}

// Valid checks if the BidStatus is valid.
func (s BidStatus) Valid() bool {
	for _, v := range allowedBidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether the bid can no longer change state.
func (s BidStatus) Terminal() bool {
	return s != BidPending
}

var allowedPriorities = [...]Priority{PriorityASAP, PriorityScheduled}

// Valid checks if the Priority is valid.
func (p Priority) Valid() bool {
	for _, v := range allowedPriorities {
		if p == v {
			return true
		}
	}
	return false
}

var allowedRequesterTypes = [...]RequesterType{RequesterEC, RequesterBC, RequesterDBC}

// Valid checks if the RequesterType is valid.
func (t RequesterType) Valid() bool {
	for _, v := range allowedRequesterTypes {
		if t == v {
			return true
		}
	}
	return false
}
