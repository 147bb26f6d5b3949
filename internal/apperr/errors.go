package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNoPartnersAvailable is returned when a dispatch round finds no eligible
// candidates; the delivery fails once its attempt budget is exhausted.
var ErrNoPartnersAvailable = errors.New("no partners available")

// ErrAlreadyAssigned is returned to the loser of a concurrent accept race.
// Expected under normal operation; callers treat it as "try the next thing".
var ErrAlreadyAssigned = errors.New("delivery already assigned")

// ErrInvalidTransition indicates a state machine violation, e.g. a reject on
// a delivered delivery. A caller bug or a stale client, never corrected
// silently.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrWindowClosed is returned for a bid submitted after the window deadline.
var ErrWindowClosed = errors.New("bid window closed")

// ErrWindowAlreadyClosed is returned to the loser of a concurrent
// window-close race.
var ErrWindowAlreadyClosed = errors.New("bid window already closed")

// ErrCapacityExceeded indicates the partner is already at its concurrent
// delivery limit.
var ErrCapacityExceeded = errors.New("partner capacity exceeded")

// ErrDeliveryCancelled is returned for a late response arriving after the
// requester cancelled the delivery.
var ErrDeliveryCancelled = errors.New("delivery cancelled")

// ErrNoBidsReceived is returned when a bid window closes with no valid bids
// and no re-open is allowed.
var ErrNoBidsReceived = errors.New("no bids received")

// ErrDuplicateBid indicates the partner already holds an open bid on the
// delivery.
var ErrDuplicateBid = errors.New("duplicate bid")

// ErrBidLimitReached indicates a per-partner or per-delivery bid cap was hit.
var ErrBidLimitReached = errors.New("bid limit reached")
