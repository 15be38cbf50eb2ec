package exception

import "errors"

// Order errors
var (
	ErrOrderRejected    = errors.New("order: rejected by venue")
	ErrOrderInvalidSize = errors.New("order: size must be > 0")
	ErrOrderUnknownID   = errors.New("order: unknown order id")
	ErrOrderInvalidSide = errors.New("order: invalid side")
	ErrOrderInvalidType = errors.New("order: invalid type")
)
