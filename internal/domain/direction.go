package domain

// Direction is the side of an open position. A flat book has no direction;
// the zero value is deliberately invalid.
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "invalid"
	}
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	return -d
}

// Signal is a strategy verdict: +1 long, -1 short, 0 flat.
type Signal int

const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)

// Direction maps a directional signal to a position direction.
// Only valid for non-flat signals.
func (s Signal) Direction() Direction {
	return Direction(s)
}

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	default:
		return "flat"
	}
}
