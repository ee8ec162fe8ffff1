package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/gustaf30/nexus/internal/model"
)

// Settings keys consulted by the delivery policy.
const (
	SettingQuietHoursStart    = "quiet_hours_start"
	SettingQuietHoursEnd      = "quiet_hours_end"
	SettingFocusModeEnabled   = "focus_mode_enabled"
	SettingFocusModeThreshold = "focus_mode_threshold"
)

// defaultFocusThreshold applies when focus mode is on but no threshold
// has been set.
const defaultFocusThreshold = model.UrgencyHigh

// SettingReader is the slice of the store the policy needs.
type SettingReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Policy decides whether a notification may be delivered natively right
// now, based on quiet hours and focus mode.
type Policy struct {
	settings SettingReader
	now      func() time.Time
}

// NewPolicy creates a Policy backed by the given settings reader.
func NewPolicy(settings SettingReader) *Policy {
	return &Policy{settings: settings, now: time.Now}
}

// ShouldSend reports whether a notification of the given urgency should
// be delivered at this moment. Quiet hours suppress everything; focus
// mode suppresses anything below its threshold.
func (p *Policy) ShouldSend(ctx context.Context, urgency model.Urgency) (bool, error) {
	start, err := p.settings.GetSetting(ctx, SettingQuietHoursStart)
	if err != nil {
		return false, fmt.Errorf("reading quiet hours start: %w", err)
	}
	end, err := p.settings.GetSetting(ctx, SettingQuietHoursEnd)
	if err != nil {
		return false, fmt.Errorf("reading quiet hours end: %w", err)
	}
	if start != "" && end != "" && inQuietHours(p.now(), start, end) {
		return false, nil
	}

	focusEnabled, err := p.settings.GetSetting(ctx, SettingFocusModeEnabled)
	if err != nil {
		return false, fmt.Errorf("reading focus mode: %w", err)
	}
	if focusEnabled == "1" {
		threshold, err := p.settings.GetSetting(ctx, SettingFocusModeThreshold)
		if err != nil {
			return false, fmt.Errorf("reading focus threshold: %w", err)
		}
		if threshold == "" {
			threshold = string(defaultFocusThreshold)
		}
		return urgency.MeetsThreshold(model.Urgency(threshold)), nil
	}

	return true, nil
}

// inQuietHours reports whether now falls in the [start, end) window.
// Windows are HH:MM local-time strings and may wrap past midnight
// (e.g. 22:00 - 08:00).
func inQuietHours(now time.Time, start, end string) bool {
	clock := now.Format("15:04")
	if start <= end {
		return clock >= start && clock < end
	}
	return clock >= start || clock < end
}
