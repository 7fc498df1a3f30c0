package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func TestNormalizeFactory(t *testing.T) {
	raw := FactoryUsage{
		Auth: decode[FactoryAuth](t, `{"organization": {"name": "Acme", "subscription": {
			"factoryTier": "team", "orbSubscription": {"plan": {"name": "Pro Monthly"}}}}}`),
		Usage: decode[FactorySubscriptionUsage](t, `{"usage": {"startDate": 1756684800000, "endDate": 1759276800000,
			"standard": {"userTokens": 2500000, "totalAllowance": 10000000, "usedRatio": 0.25},
			"premium": {"userTokens": 100, "totalAllowance": 0}}}`),
	}
	snap, err := Normalize(provider.Factory, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	standard, premium := snap.Metrics[0], snap.Metrics[1]
	if standard.Label != "Standard" || *standard.UsedPercent != 25 || *standard.WindowMinutes != 30*24*60 {
		t.Errorf("standard = %+v", standard)
	}
	if want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC); standard.ResetsAt == nil || !standard.ResetsAt.Equal(want) {
		t.Errorf("reset = %v, want %v", standard.ResetsAt, want)
	}
	if *premium.UsedPercent != 0 {
		t.Errorf("premium = %+v", premium)
	}
	if snap.Identity == nil || snap.Identity.Organization != "Acme" || snap.Identity.Plan != "team - Pro Monthly" {
		t.Errorf("identity = %+v", snap.Identity)
	}

	if _, err := Normalize(provider.Factory, FactoryUsage{}); !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Errorf("empty usage: err = %v", err)
	}
}

func TestFactoryPercent(t *testing.T) {
	ratio := func(v float64) *float64 { return &v }
	tests := []struct {
		name      string
		used      int64
		allowance int64
		ratio     *float64
		want      float64
	}{
		{"fraction ratio", 0, 1000, ratio(0.5), 50},
		{"percent ratio without allowance", 0, 0, ratio(42), 42},
		{"percent ratio ignored with allowance", 300, 1000, ratio(42), 30},
		{"unlimited uses reference", 50_000_000, 2_000_000_000_000, nil, 50},
		{"over allowance caps", 2000, 1000, nil, 100},
		{"no allowance", 10, 0, nil, 0},
		{"nan ratio falls back", 100, 1000, ratio(math.NaN()), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := factoryPercent(tt.used, tt.allowance, tt.ratio); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("factoryPercent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeKimi(t *testing.T) {
	raw := decode[KimiUsages](t, `{"usages": [
		{"scope": "FEATURE_OTHER", "detail": {"limit": "10", "used": "1"}},
		{"scope": "FEATURE_CODING",
		 "detail": {"limit": "2048", "used": "512", "resetTime": "2025-09-17T00:00:00Z"},
		 "limits": [{"window": {"duration": 300, "timeUnit": "TIME_UNIT_MINUTE"},
		             "detail": {"limit": "200", "used": "50", "resetTime": "2025-09-10T15:00:00Z"}}]}
	]}`)
	snap, err := Normalize(provider.Kimi, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	rate, quota := snap.Metrics[0], snap.Metrics[1]
	if rate.Used != 50 || *rate.Limit != 200 || *rate.UsedPercent != 25 || *rate.WindowMinutes != 300 {
		t.Errorf("rate limit = %+v", rate)
	}
	if quota.Used != 512 || *quota.UsedPercent != 25 || quota.WindowMinutes != nil {
		t.Errorf("quota = %+v", quota)
	}
	if want := time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC); !quota.ResetsAt.Equal(want) {
		t.Errorf("quota reset = %v", quota.ResetsAt)
	}

	hourly := decode[KimiUsages](t, `{"usages": [{"limits": [{"window": {"duration": 2, "timeUnit": "TIME_UNIT_HOUR"},
		"detail": {"limit": 10, "used": 5}}]}]}`)
	snap, err = Normalize(provider.Kimi, hourly)
	if err != nil {
		t.Fatalf("hourly: %v", err)
	}
	if *snap.Metrics[0].WindowMinutes != 120 {
		t.Errorf("hourly window = %v", *snap.Metrics[0].WindowMinutes)
	}

	if _, err := Normalize(provider.Kimi, KimiUsages{}); !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Errorf("empty usages: err = %v", err)
	}
}
