package notify

import (
	"context"
	"testing"
	"time"

	"github.com/gustaf30/nexus/internal/model"
)

type fakeSettings map[string]string

func (f fakeSettings) GetSetting(_ context.Context, key string) (string, error) {
	return f[key], nil
}

func policyAt(settings fakeSettings, clock string) *Policy {
	p := NewPolicy(settings)
	p.now = func() time.Time {
		t, _ := time.Parse("15:04", clock)
		return t
	}
	return p
}

func TestShouldSendDefaultsToYes(t *testing.T) {
	p := policyAt(fakeSettings{}, "12:00")
	send, err := p.ShouldSend(context.Background(), model.UrgencyLow)
	if err != nil {
		t.Fatalf("ShouldSend: %v", err)
	}
	if !send {
		t.Error("with no settings every notification should send")
	}
}

func TestQuietHours(t *testing.T) {
	tests := []struct {
		name        string
		start, end  string
		clock       string
		wantSuppres bool
	}{
		{"inside same-day window", "09:00", "17:00", "12:00", true},
		{"before same-day window", "09:00", "17:00", "08:59", false},
		{"at window end", "09:00", "17:00", "17:00", false},
		{"overnight window, late evening", "22:00", "08:00", "23:30", true},
		{"overnight window, early morning", "22:00", "08:00", "06:00", true},
		{"overnight window, daytime", "22:00", "08:00", "12:00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := policyAt(fakeSettings{
				SettingQuietHoursStart: tt.start,
				SettingQuietHoursEnd:   tt.end,
			}, tt.clock)

			send, err := p.ShouldSend(context.Background(), model.UrgencyCritical)
			if err != nil {
				t.Fatalf("ShouldSend: %v", err)
			}
			if send == tt.wantSuppres {
				t.Errorf("send = %v, want suppressed = %v", send, tt.wantSuppres)
			}
		})
	}
}

func TestFocusMode(t *testing.T) {
	tests := []struct {
		name      string
		threshold string
		urgency   model.Urgency
		want      bool
	}{
		{"below explicit threshold", "high", model.UrgencyMedium, false},
		{"at explicit threshold", "high", model.UrgencyHigh, true},
		{"above explicit threshold", "high", model.UrgencyCritical, true},
		{"default threshold is high", "", model.UrgencyMedium, false},
		{"default threshold passes critical", "", model.UrgencyCritical, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := fakeSettings{SettingFocusModeEnabled: "1"}
			if tt.threshold != "" {
				settings[SettingFocusModeThreshold] = tt.threshold
			}
			p := policyAt(settings, "12:00")

			send, err := p.ShouldSend(context.Background(), tt.urgency)
			if err != nil {
				t.Fatalf("ShouldSend: %v", err)
			}
			if send != tt.want {
				t.Errorf("send = %v, want %v", send, tt.want)
			}
		})
	}
}

func TestFocusModeDisabledFlag(t *testing.T) {
	p := policyAt(fakeSettings{SettingFocusModeEnabled: "0"}, "12:00")
	send, err := p.ShouldSend(context.Background(), model.UrgencyLow)
	if err != nil {
		t.Fatalf("ShouldSend: %v", err)
	}
	if !send {
		t.Error("focus mode off should not filter by threshold")
	}
}

func TestHumanizeReasons(t *testing.T) {
	tests := []struct {
		reasons []string
		want    string
	}{
		{[]string{"assigned_to_me"}, "Assigned to you"},
		{[]string{"assigned_to_me", "priority_p1_blocker"}, "Assigned to you, High priority"},
		{[]string{"pr_review_requested", "ci_failed"}, "Review requested, CI failed"},
		{[]string{"custom_signal"}, "custom_signal"},
		{[]string{" vip_sender ", ""}, "VIP sender"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := HumanizeReasons(tt.reasons); got != tt.want {
			t.Errorf("HumanizeReasons(%v) = %q, want %q", tt.reasons, got, tt.want)
		}
	}
}
