package valueobject

import (
	"testing"
	"time"
)

func at(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCadenceNext(t *testing.T) {
	interval, _ := NewIntervalCadence(300 * time.Second)
	daily, _ := NewDailyCadence("08:00")
	monday, _ := NewWeeklyCadence("monday")
	sunday, _ := NewWeeklyCadence("Sunday")

	tests := []struct {
		name    string
		cadence Cadence
		now     string
		want    string
	}{
		{"interval", interval, "2026-10-19 10:00:00", "2026-10-19 10:05:00"},
		{"daily before time fires today", daily, "2026-10-19 07:59:59", "2026-10-19 08:00:00"},
		{"daily at exact time moves to tomorrow", daily, "2026-10-19 08:00:00", "2026-10-20 08:00:00"},
		{"daily after time fires tomorrow", daily, "2026-10-19 09:30:00", "2026-10-20 08:00:00"},
		{"daily across month end", daily, "2026-10-31 23:00:00", "2026-11-01 08:00:00"},
		{"weekly armed on same weekday waits a week", monday, "2026-10-19 10:15:00", "2026-10-26 10:15:00"},
		{"weekly armed on sunday for monday", monday, "2026-10-18 22:00:00", "2026-10-19 22:00:00"},
		{"weekly sunday from monday", sunday, "2026-10-19 03:00:00", "2026-10-25 03:00:00"},
		{"monthly checks daily", NewMonthlyCadence(), "2026-10-19 10:00:00", "2026-10-20 10:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cadence.Next(at(tt.now))
			if !got.Equal(at(tt.want)) {
				t.Fatalf("Next(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestCadenceMonthlyDue(t *testing.T) {
	monthly := NewMonthlyCadence()
	lastOctober := at("2026-10-01 09:00:00")
	lastNovemberPrevYear := at("2025-11-01 09:00:00")

	tests := []struct {
		name    string
		now     string
		lastRun *time.Time
		want    bool
	}{
		{"first day never run", "2026-11-01 09:00:00", nil, true},
		{"first day ran last month", "2026-11-01 09:00:00", &lastOctober, true},
		{"first day already ran this month", "2026-10-01 18:00:00", &lastOctober, false},
		{"same month one year later", "2026-11-01 09:00:00", &lastNovemberPrevYear, true},
		{"not first day", "2026-10-02 09:00:00", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := monthly.MonthlyDue(at(tt.now), tt.lastRun); got != tt.want {
				t.Fatalf("MonthlyDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCadence(t *testing.T) {
	tests := []struct {
		kind      string
		value     string
		wantValue string
		wantErr   bool
	}{
		{"interval", "300", "300", false},
		{"interval", "5m", "300", false},
		{"interval", "0", "", true},
		{"daily", "02:00", "02:00", false},
		{"daily", "2:00", "", true},
		{"daily", "25:00", "", true},
		{"weekly", "SUNDAY", "sunday", false},
		{"weekly", "someday", "", true},
		{"monthly", "", "1", false},
		{"hourly", "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.value, func(t *testing.T) {
			c, err := ParseCadence(tt.kind, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s=%s", tt.kind, tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCadence() error = %v", err)
			}
			if c.Value() != tt.wantValue {
				t.Fatalf("Value() = %q, want %q", c.Value(), tt.wantValue)
			}
		})
	}
}
