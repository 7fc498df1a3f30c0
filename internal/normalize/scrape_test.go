package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func fixNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

func TestNormalizeKiro(t *testing.T) {
	fixed := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	fixNow(t, fixed)

	out := "\x1b[1m| KIRO PRO |\x1b[0m\n" +
		"Credits: \x1b[32m42%\x1b[0m used, resets on 10/01\n" +
		"Bonus credits: 5.5/10 credits used, expires in 7 days\n"
	snap, err := Normalize(provider.Kiro, KiroUsage{Output: out})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}

	monthly := snap.Metrics[0]
	if *monthly.UsedPercent != 42 {
		t.Errorf("monthly pct = %v, want 42", *monthly.UsedPercent)
	}
	if want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC); monthly.ResetsAt == nil || !monthly.ResetsAt.Equal(want) {
		t.Errorf("monthly reset = %v, want %v", monthly.ResetsAt, want)
	}

	bonus := snap.Metrics[1]
	if bonus.Used != 5.5 || *bonus.Limit != 10 || *bonus.UsedPercent != 55 || bonus.Unit != model.UnitCredits {
		t.Errorf("bonus = %+v", bonus)
	}
	if !bonus.ResetsAt.Equal(fixed.AddDate(0, 0, 7)) {
		t.Errorf("bonus reset = %v", bonus.ResetsAt)
	}
	if snap.Identity == nil || snap.Identity.Plan != "KIRO PRO" {
		t.Errorf("identity = %+v", snap.Identity)
	}
}

func TestKiroResetRollsIntoNextYear(t *testing.T) {
	fixNow(t, time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC))

	snap, err := Normalize(provider.Kiro, KiroUsage{Output: "80% of credits used, resets on 09/01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if got := snap.Metrics[0].ResetsAt; got == nil || !got.Equal(want) {
		t.Errorf("reset = %v, want %v", got, want)
	}
	if nextMonthDay(2, 30) != nil {
		t.Error("Feb 30 should not resolve")
	}
}

func TestKiroWithoutUsageIsShapeError(t *testing.T) {
	_, err := Normalize(provider.Kiro, KiroUsage{Output: "error: not logged in"})
	if !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Fatalf("err = %v, want UnrecognizedResponseShape", err)
	}
}

func TestNormalizeJetBrains(t *testing.T) {
	raw := JetBrainsQuota{
		QuotaInfo:  `{"type":"Available","current":"250.0","maximum":"1000.0","tariffQuota":{"current":"250.0","maximum":"1000.0","available":"750.0"}}`,
		NextRefill: `{"type":"Known","next":"2025-10-01T00:00:00Z"}`,
		IDE:        "IntelliJIdea2025.2",
	}
	snap, err := Normalize(provider.JetBrains, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := snap.Metrics[0]
	if *m.UsedPercent != 25 {
		t.Errorf("used = %v, want 25", *m.UsedPercent)
	}
	if want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC); m.ResetsAt == nil || !m.ResetsAt.Equal(want) {
		t.Errorf("reset = %v", m.ResetsAt)
	}
	if snap.Identity == nil || snap.Identity.Organization != "IntelliJIdea2025.2" {
		t.Errorf("identity = %+v", snap.Identity)
	}

	snap, err = Normalize(provider.JetBrains, JetBrainsQuota{QuotaInfo: `{"max": 200, "available": 50}`})
	if err != nil {
		t.Fatalf("flat quota: %v", err)
	}
	if got := *snap.Metrics[0].UsedPercent; got != 75 {
		t.Errorf("flat quota used = %v, want 75", got)
	}

	for _, bad := range []string{`{"available": 5}`, `not json`} {
		if _, err := Normalize(provider.JetBrains, JetBrainsQuota{QuotaInfo: bad}); !errors.Is(err, model.ErrUnrecognizedResponseShape) {
			t.Errorf("%s: err = %v", bad, err)
		}
	}
}

func TestNormalizeAmp(t *testing.T) {
	fixed := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	fixNow(t, fixed)

	tests := []struct {
		name string
		html string
	}{
		{"script literal", `<script>window.__data = {user:{id:"u"}, freeTierUsage:{quota:1000,used:250,hourlyReplenishment:50,windowHours:24}};</script>`},
		{"json", `<script>{"getFreeTierUsage":{"quota":1000,"used":250,"hourlyReplenishment":50,"windowHours":24,"note":"{}"}}</script>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Normalize(provider.Amp, AmpSettings{HTML: tt.html})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			m := snap.Metrics[0]
			if m.Used != 250 || *m.Limit != 1000 || *m.UsedPercent != 25 || *m.WindowMinutes != 1440 {
				t.Errorf("metric = %+v", m)
			}
			if !m.ResetsAt.Equal(fixed.Add(5 * time.Hour)) {
				t.Errorf("reset = %v, want five hours out", m.ResetsAt)
			}
		})
	}

	_, err := Normalize(provider.Amp, AmpSettings{HTML: "<html>sign in</html>"})
	if !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Fatalf("err = %v, want UnrecognizedResponseShape", err)
	}
}

func TestObjectAfterSkipsBracesInStrings(t *testing.T) {
	got := objectAfter(`x = tok {"a":"}{","b":{"c":1}} trailing}`, "tok")
	if want := `{"a":"}{","b":{"c":1}}`; got != want {
		t.Fatalf("objectAfter = %q, want %q", got, want)
	}
	if objectAfter("no token here", "tok") != "" {
		t.Fatal("missing token should give empty")
	}
}

func TestNormalizeOpenCode(t *testing.T) {
	fixed := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	fixNow(t, fixed)

	snap, err := Normalize(provider.OpenCode, OpenCodeSubscription{
		Text: `$R[0]={rollingUsage:{usagePercent:12.5,resetInSec:3600},weeklyUsage:{usagePercent:40,resetInSec:86400}}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, weekly := snap.Metrics[0], snap.Metrics[1]
	if *session.UsedPercent != 12.5 || *session.WindowMinutes != fiveHourMinutes || !session.ResetsAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("session = %+v", session)
	}
	if *weekly.UsedPercent != 40 || *weekly.WindowMinutes != weekMinutes || !weekly.ResetsAt.Equal(fixed.Add(24*time.Hour)) {
		t.Errorf("weekly = %+v", weekly)
	}

	snap, err = Normalize(provider.OpenCode, OpenCodeSubscription{
		Text: `;0x1;{"data":{"subscription":{"rolling":{"usagePercent":5,"resetInSec":60},"weekly":{"usagePercent":7,"resetInSec":120}}}}`,
	})
	if err != nil {
		t.Fatalf("json form: %v", err)
	}
	if *snap.Metrics[0].UsedPercent != 5 || *snap.Metrics[1].UsedPercent != 7 {
		t.Errorf("json metrics = %+v", snap.Metrics)
	}

	if _, err := Normalize(provider.OpenCode, OpenCodeSubscription{Text: `{"ok":true}`}); !errors.Is(err, model.ErrUnrecognizedResponseShape) {
		t.Errorf("err = %v, want UnrecognizedResponseShape", err)
	}
}
