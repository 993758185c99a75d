package match

import "errors"

// Every rejected operation carries one of these, each with a distinct
// human-readable reason so clients never have to guess the cause.
var (
	ErrInvalidStake       = errors.New("stake must be a positive amount")
	ErrInsufficientFunds  = errors.New("insufficient balance for this stake")
	ErrNotFound           = errors.New("battle or room no longer exists")
	ErrForbidden          = errors.New("you are not allowed to perform this action")
	ErrCreatorUnderfunded = errors.New("battle creator can no longer cover the stake")
	ErrPartialSettlement  = errors.New("settlement completed for only one player")
)
