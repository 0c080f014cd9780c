package domain

import (
	"testing"
	"time"
)

func TestParseBirthDate(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "regular date", input: "27.11.1997", want: "1997-11-27"},
		{name: "first of january", input: "01.01.2000", want: "2000-01-01"},
		{name: "leap day accepted", input: "29.02.2024", want: "2024-02-29"},
		{name: "surrounding whitespace", input: "  05.06.1990 ", want: "1990-06-05"},
		{name: "month out of range", input: "12.13.2020", wantErr: true},
		{name: "day does not exist", input: "31.02.2020", wantErr: true},
		{name: "leap day in non-leap year", input: "29.02.2023", wantErr: true},
		{name: "iso order rejected", input: "2020-01-01", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBirthDate(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseBirthDate(%q) = %q, expected error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBirthDate(%q) returned error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseBirthDate(%q) = %q, expected %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "midnight", input: "00:00", want: "00:00"},
		{name: "last minute of day", input: "23:59", want: "23:59"},
		{name: "regular time", input: "18:25", want: "18:25"},
		{name: "whitespace trimmed", input: " 09:00 ", want: "09:00"},
		{name: "hour out of range", input: "25:00", wantErr: true},
		{name: "minute out of range", input: "10:60", wantErr: true},
		{name: "missing minutes", input: "10", wantErr: true},
		{name: "garbage", input: "noon", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClock(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) = %q, expected error", tc.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) returned error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseClock(%q) = %q, expected %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestClockParts(t *testing.T) {
	hour, minute, err := ClockParts("08:45")
	if err != nil {
		t.Fatalf("ClockParts returned error: %v", err)
	}
	if hour != 8 || minute != 45 {
		t.Errorf("ClockParts(08:45) = (%d, %d), expected (8, 45)", hour, minute)
	}

	if _, _, err := ClockParts("8:70"); err == nil {
		t.Error("ClockParts(8:70) expected error")
	}
}

func TestParseText(t *testing.T) {
	if _, err := ParseText("   "); err == nil {
		t.Error("ParseText of blank input expected error")
	}

	got, err := ParseText("  Berlin ")
	if err != nil {
		t.Fatalf("ParseText returned error: %v", err)
	}
	if got != "Berlin" {
		t.Errorf("ParseText = %q, expected %q", got, "Berlin")
	}
}

func TestFormatBirthDate(t *testing.T) {
	if got := FormatBirthDate("2000-01-01"); got != "01.01.2000" {
		t.Errorf("FormatBirthDate = %q, expected 01.01.2000", got)
	}
}

func TestActiveSubscription(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)
	past := now.Add(-time.Minute)

	testCases := []struct {
		name    string
		profile *Profile
		want    bool
	}{
		{name: "nil profile", profile: nil, want: false},
		{name: "subscribed with future expiry", profile: &Profile{IsSubscribed: true, SubscriptionExpiry: &future}, want: true},
		{name: "subscribed but expired", profile: &Profile{IsSubscribed: true, SubscriptionExpiry: &past}, want: false},
		{name: "flag set without expiry", profile: &Profile{IsSubscribed: true}, want: false},
		{name: "expiry without flag", profile: &Profile{SubscriptionExpiry: &future}, want: false},
		{name: "expiry exactly now", profile: &Profile{IsSubscribed: true, SubscriptionExpiry: &now}, want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.profile.ActiveSubscription(now); got != tc.want {
				t.Errorf("ActiveSubscription = %t, expected %t", got, tc.want)
			}
		})
	}
}
