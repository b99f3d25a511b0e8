package trigger

import (
	"context"
	"errors"
	"testing"
)

func TestNearEnd(t *testing.T) {
	p := Proximity{Threshold: 2}
	tests := []struct {
		position, loaded int
		want             bool
	}{
		{0, 12, false},
		{8, 12, false},
		{9, 12, true},
		{11, 12, true},
		{0, 0, true},
	}
	for _, tt := range tests {
		if got := p.NearEnd(tt.position, tt.loaded); got != tt.want {
			t.Errorf("NearEnd(%d, %d) = %v, want %v", tt.position, tt.loaded, got, tt.want)
		}
	}
}

func TestOnScrollCallsLoad(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	p := Proximity{Threshold: 1, Load: func(ctx context.Context) error {
		calls++
		return boom
	}}

	if fired, err := p.OnScroll(context.Background(), 2, 10); fired || err != nil {
		t.Fatalf("expected no load far from end, got %v %v", fired, err)
	}
	fired, err := p.OnScroll(context.Background(), 8, 10)
	if !fired || !errors.Is(err, boom) {
		t.Fatalf("expected load with error, got %v %v", fired, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
