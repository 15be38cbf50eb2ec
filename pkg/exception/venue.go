package exception

import "errors"

// Venue errors
var (
	ErrVenueBadStatus      = errors.New("venue: response status is not ok")
	ErrVenueEmptyResponse  = errors.New("venue: empty response body")
	ErrVenueMissingOrderID = errors.New("venue: response is missing order id")
	ErrVenueRateLimited    = errors.New("venue: rate limited")
	ErrVenueUnknownSymbol  = errors.New("venue: unknown symbol")
)
