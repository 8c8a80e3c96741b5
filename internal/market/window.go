package market

import (
	"github.com/Allenwang2004/Alltrader/internal/domain"
)

// RollingWindow keeps the most recent maxLen bars, oldest first.
type RollingWindow struct {
	bars   []domain.Bar
	maxLen int
}

func NewRollingWindow(maxLen int) *RollingWindow {
	return &RollingWindow{maxLen: maxLen}
}

// Append adds a bar, evicting the oldest once the window is full.
func (w *RollingWindow) Append(b domain.Bar) {
	w.bars = append(w.bars, b)
	if len(w.bars) > w.maxLen {
		copy(w.bars, w.bars[1:])
		w.bars = w.bars[:w.maxLen]
	}
}

func (w *RollingWindow) Len() int { return len(w.bars) }

// Bars returns the window contents. The slice is shared; callers must not
// mutate it.
func (w *RollingWindow) Bars() []domain.Bar { return w.bars }

// TimeframeState pairs the two strategy windows. Owned exclusively by the
// controller goroutine; never shared.
type TimeframeState struct {
	M15 *RollingWindow
	H1  *RollingWindow
}

func NewTimeframeState(size int) *TimeframeState {
	return &TimeframeState{
		M15: NewRollingWindow(size),
		H1:  NewRollingWindow(size),
	}
}
