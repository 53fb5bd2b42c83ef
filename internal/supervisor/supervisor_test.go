package supervisor

import "testing"
import "time"

func TestBackoffDelayDoublesUntilCap(t *testing.T) {
	initial := 60 * time.Second
	cap := 3600 * time.Second

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
		{7, 3600 * time.Second}, // 60*2^6 = 3840s, clamped to the 3600s cap
	}
	for _, c := range cases {
		got := backoffDelay(c.failures, initial, cap)
		if got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.failures, got, c.want)
		}
	}
}

func TestBackoffDelayNeverExceedsCapEvenAtLargeFailureCounts(t *testing.T) {
	got := backoffDelay(40, 60*time.Second, 3600*time.Second)
	if got != 3600*time.Second {
		t.Errorf("backoffDelay(40) = %v, want capped at 3600s", got)
	}
}
