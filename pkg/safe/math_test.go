package safe

import (
	"math"
	"testing"
)

func TestSafeAdd(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int64
		want      int64
		wantPanic bool
	}{
		{"Simple", 2, 3, 5, false},
		{"Negative", -2, -3, -5, false},
		{"Overflow", math.MaxInt64, 1, 0, true},
		{"Underflow", math.MinInt64, -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("SafeAdd(%d, %d) panic = %v, wantPanic %v", tt.a, tt.b, r, tt.wantPanic)
				}
			}()
			if got := SafeAdd(tt.a, tt.b); got != tt.want {
				t.Errorf("SafeAdd(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSafeMul(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int64
		want      int64
		wantPanic bool
	}{
		{"Simple", 6, 7, 42, false},
		{"Zero", 0, math.MaxInt64, 0, false},
		{"MixedSign", -4, 5, -20, false},
		{"Overflow", math.MaxInt64, 2, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("SafeMul(%d, %d) panic = %v, wantPanic %v", tt.a, tt.b, r, tt.wantPanic)
				}
			}()
			if got := SafeMul(tt.a, tt.b); got != tt.want {
				t.Errorf("SafeMul(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSafeDiv(t *testing.T) {
	if got := SafeDiv(10, 4); got != 2 {
		t.Errorf("SafeDiv(10, 4) = %d, want 2", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("SafeDiv by zero should panic")
		}
	}()
	SafeDiv(1, 0)
}
