package backoff_test

import (
	"testing"
	"time"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},  // 1 * 2^0
		{2, 2 * time.Second},  // 1 * 2^1
		{3, 4 * time.Second},  // 1 * 2^2
		{4, 8 * time.Second},  // 1 * 2^3
		{5, 16 * time.Second}, // 1 * 2^4
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(5); got != 10*time.Second {
		t.Errorf("Delay(5) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponentialWithJitter_WithinBounds(t *testing.T) {
	base := time.Second
	e := backoff.NewExponentialWithJitter(base, 0)

	for attempt := 1; attempt <= 5; attempt++ {
		lower := time.Duration(float64(base) * float64(int(1)<<(attempt-1)))
		upper := lower + base

		for range 200 {
			got := e.Delay(attempt)
			if got < lower || got >= upper {
				t.Fatalf("Delay(%d) = %v, want in [%v, %v)", attempt, got, lower, upper)
			}
		}
	}
}

func TestExponentialWithJitter_CapAppliesToExponentialPart(t *testing.T) {
	base := time.Second
	e := backoff.NewExponentialWithJitter(base, 4*time.Second)

	// Attempt 10 would be 512s uncapped; the deterministic part caps at 4s,
	// jitter still adds up to base.
	for range 200 {
		got := e.Delay(10)
		if got < 4*time.Second || got >= 5*time.Second {
			t.Fatalf("Delay(10) = %v, want in [4s, 5s)", got)
		}
	}
}

func TestExponentialWithJitter_Varies(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 0)

	first := e.Delay(1)
	for range 100 {
		if e.Delay(1) != first {
			return
		}
	}
	t.Error("Delay(1) returned the same value 100 times; jitter looks absent")
}
