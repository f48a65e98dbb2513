package timeutil

import (
	"testing"
	"time"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"zero", 0, "00:00:00"},
		{"seconds", 9 * time.Second, "00:00:09"},
		{"minutes", 5*time.Minute + 3*time.Second, "00:05:03"},
		{"hours", 2*time.Hour + 10*time.Minute, "02:10:00"},
		{"past a day", 30 * time.Hour, "30:00:00"},
		{"truncates millis", 1500 * time.Millisecond, "00:00:01"},
		{"negative", -90 * time.Second, "-00:01:30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatClock(tt.d); got != tt.want {
				t.Errorf("FormatClock(%s) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{40 * time.Second, "40s"},
		{12 * time.Minute, "12m"},
		{90 * time.Minute, "1.5h"},
	}
	for _, tt := range tests {
		if got := FormatShort(tt.d); got != tt.want {
			t.Errorf("FormatShort(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestManHours(t *testing.T) {
	if got := ManHours(90 * time.Minute); got != 1.5 {
		t.Errorf("ManHours(90m) = %v, want 1.5", got)
	}
	if got := ManHours(20 * time.Minute); got != 0.33 {
		t.Errorf("ManHours(20m) = %v, want 0.33", got)
	}
}

func TestManualClock(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	c := NewManualClock(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("Now() = %v, want %v", c.Now(), t0)
	}
	got := c.Advance(10 * time.Second)
	if want := t0.Add(10 * time.Second); !got.Equal(want) || !c.Now().Equal(want) {
		t.Errorf("Advance = %v, want %v", got, want)
	}
	if d := Elapsed(c.Now(), t0); d != 10*time.Second {
		t.Errorf("Elapsed = %s, want 10s", d)
	}
}
