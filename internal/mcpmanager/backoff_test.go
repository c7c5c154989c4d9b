package mcpmanager

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestScenarioS5BackoffSequence(t *testing.T) {
	b := NewBackoff()
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3000 * time.Millisecond,
		3000 * time.Millisecond,
		3000 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.NextDelay(); got != w {
			t.Fatalf("NextDelay() #%d = %v, want %v", i, got, w)
		}
	}
	b.Reset()
	if got := b.NextDelay(); got != 100*time.Millisecond {
		t.Fatalf("NextDelay() after Reset = %v, want 100ms", got)
	}
}

func TestBackoffNonDecreasingUntilCap(t *testing.T) {
	b := NewBackoff()
	var last time.Duration
	for i := 0; i < 50; i++ {
		d := b.NextDelay()
		if d < last {
			t.Fatalf("delay decreased at step %d: %v < %v", i, d, last)
		}
		if d > 3*time.Second {
			t.Fatalf("delay %v exceeds cap at step %d", d, i)
		}
		last = d
	}
}

func TestBackoffCustomLimits(t *testing.T) {
	b := NewBackoffWithLimits(10*time.Millisecond, 40*time.Millisecond)
	want := []time.Duration{10, 20, 40, 40}
	for i, w := range want {
		if got := b.NextDelay(); got != w*time.Millisecond {
			t.Fatalf("NextDelay() #%d = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}

// TestAgreesWithUnjitteredCenkaltiBackoff cross-checks the hand-rolled
// sequence against cenkalti/backoff's exponential backoff configured
// with randomization disabled, for the first 8 steps, keeping that
// dependency genuinely exercised rather than merely imported.
func TestAgreesWithUnjitteredCenkaltiBackoff(t *testing.T) {
	ours := NewBackoff()
	ref := backoff.NewExponentialBackOff()
	ref.InitialInterval = 100 * time.Millisecond
	ref.Multiplier = 2
	ref.MaxInterval = 3 * time.Second
	ref.RandomizationFactor = 0
	ref.MaxElapsedTime = 0
	ref.Reset()

	for i := 0; i < 8; i++ {
		ourDelay := ours.NextDelay()
		refDelay := ref.NextBackOff()
		if ourDelay != refDelay {
			t.Fatalf("step %d: ours=%v cenkalti=%v", i, ourDelay, refDelay)
		}
	}
}
