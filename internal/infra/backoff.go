package infra

import (
	"time"
)

const (
	reconnectBase = 1 * time.Second
	reconnectMax  = 60 * time.Second
)

// ReconnectDelay returns how long to wait before the attempt-th reconnect.
// The delay doubles from reconnectBase and saturates at reconnectMax.
// Attempts count from zero; a negative attempt gets the base delay.
func ReconnectDelay(attempt int) time.Duration {
	return backoffDelay(attempt, reconnectBase, reconnectMax)
}

func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}
