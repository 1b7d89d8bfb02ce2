package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	particleruntime "github.com/wippyai/particle-runtime"
	perrors "github.com/wippyai/particle-runtime/errors"
)

func TestRandomHost_Call(t *testing.T) {
	host := NewRandomHost(1)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		out, err := host.Call(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		v, err := strconv.ParseFloat(out["value"], 64)
		if err != nil {
			t.Fatalf("value %q is not a float: %v", out["value"], err)
		}
		if v < 0 || v >= 1 {
			t.Errorf("value %v out of range", v)
		}
		seen[out["value"]] = true
	}
	if len(seen) < 2 {
		t.Error("random values do not vary")
	}

	a, _ := NewRandomHost(7).Call(ctx, nil)
	b, _ := NewRandomHost(7).Call(ctx, nil)
	if a["value"] != b["value"] {
		t.Error("same seed should give the same sequence")
	}
}

func TestClockHost_Units(t *testing.T) {
	fixed := time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)
	host := NewClockHost(func() time.Time { return fixed })
	ctx := context.Background()

	tests := []struct {
		unit string
		want int64
	}{
		{"DAYS", fixed.Unix() / 86400},
		{"HOURS", fixed.Unix() / 3600},
		{"SECONDS", fixed.Unix()},
		{"", fixed.UnixMilli()},
		{"milliseconds", fixed.UnixMilli()},
	}
	for _, tt := range tests {
		out, err := host.Call(ctx, particleruntime.Dictionary{"timeUnit": tt.unit})
		if err != nil {
			t.Fatalf("%s: %v", tt.unit, err)
		}
		if out["value"] != strconv.FormatInt(tt.want, 10) {
			t.Errorf("%s: got %s, want %d", tt.unit, out["value"], tt.want)
		}
	}

	if _, err := host.Call(ctx, particleruntime.Dictionary{"timeUnit": "FORTNIGHTS"}); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := Default()
	names := r.Names()
	if len(names) != 2 || names[0] != "clock.now" || names[1] != "random.next" {
		t.Errorf("unexpected providers %v", names)
	}
	if _, err := r.Call(context.Background(), "weather.now", nil); !errors.Is(err, perrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := r.Call(context.Background(), "random.next", nil); err != nil {
		t.Errorf("random.next failed: %v", err)
	}
}
