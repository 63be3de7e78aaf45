package errors

import "errors"

var ErrSeatNotFound = errors.New("seat not found")
var ErrSeatUnavailable = errors.New("seat is booked or held by another user")
var ErrAlreadySelected = errors.New("seat is already selected")
var ErrNotSelected = errors.New("seat is not selected")
var ErrMaxSeatsExceeded = errors.New("maximum number of seats reached")
var ErrSeatBusy = errors.New("seat update already in progress")
var ErrRemoteRejected = errors.New("server rejected the seat update")

var ErrInvalidStep = errors.New("operation is not allowed at the current booking step")
var ErrNoSeatsSelected = errors.New("no seats selected")
var ErrCannotExtend = errors.New("booking timer cannot be extended now")
var ErrTimerExpired = errors.New("booking timer expired")
var ErrStale = errors.New("response arrived after the session moved on")

var ErrSessionNotFound = errors.New("booking session not found")
var ErrCacheMiss = errors.New("cache miss")

var ErrShowNotFound = errors.New("show does not belong to the selected event")
var ErrFlowBusy = errors.New("another booking step is in progress")
var ErrSeatsRejected = errors.New("selected seats failed validation")
