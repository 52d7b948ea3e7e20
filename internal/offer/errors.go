package offer

import "errors"

// Error taxonomy for the offer lifecycle (spec 7): state violations the
// caller must not retry.
var (
	ErrInvalidState            = errors.New("offer: invalid state")
	ErrAlreadyAssigned         = errors.New("offer: order already has a non-terminal assignment")
	ErrExpired                 = errors.New("offer: offer expired")
	ErrInvalidStatusTransition = errors.New("offer: invalid driver status transition")
)
