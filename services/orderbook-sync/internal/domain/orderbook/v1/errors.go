package orderbookv1

import "errors"

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrInvalidSide  = errors.New("side must be buy or sell")
	ErrInvalidState = errors.New("invalid orderbook state")
	ErrOrderExists  = errors.New("order already exists")
)
