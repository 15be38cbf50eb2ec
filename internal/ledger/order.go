package ledger

import "time"

type Side uint8

const (
	_side_beg Side = iota
	SideBuy
	SideSell
	_side_end
)

func (s Side) IsAvailable() bool {
	return s > _side_beg && s < _side_end
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

type Type uint8

const (
	_type_beg Type = iota
	TypeLimit
	TypeMarket
	_type_end
)

func (t Type) IsAvailable() bool {
	return t > _type_beg && t < _type_end
}

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "limit"
	case TypeMarket:
		return "market"
	default:
		return "unknown"
	}
}

type Status uint8

const (
	_status_beg Status = iota
	StatusPending
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
	_status_end
)

func (s Status) IsAvailable() bool {
	return s > _status_beg && s < _status_end
}

// IsActive reports whether the order can still trade.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusPartiallyFilled
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Order is one tracked venue order. Only acknowledged orders with a venue
// order id are ever stored.
type Order struct {
	OrderID      int64
	ClientID     string
	Coin         string
	Side         Side
	Type         Type
	Size         float64
	Price        float64
	ReduceOnly   bool
	Status       Status
	FilledSize   float64
	AvgFillPrice float64
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// missedScans counts consecutive reconcile passes where the order was
	// absent from the venue's open-order list without a matching fill.
	missedScans int
}
