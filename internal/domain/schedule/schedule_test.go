package schedule

import (
	"errors"
	"testing"
	"time"
)

func civilZone(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatalf("load civil zone: %v", err)
	}
	return loc
}

func TestWeekOfMonth(t *testing.T) {
	loc := civilZone(t)
	tests := []struct {
		day  int
		want int
	}{
		{1, 1},
		{7, 1},
		{8, 2},
		{14, 2},
		{15, 3},
		{21, 3},
		{22, 4},
		{28, 4},
		{29, 5},
		{31, 5},
	}
	for _, tt := range tests {
		date := time.Date(2025, time.January, tt.day, 0, 0, 0, 0, loc)
		if got := WeekOfMonth(date); got != tt.want {
			t.Errorf("WeekOfMonth(Jan %d) = %d, want %d", tt.day, got, tt.want)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"weekly", "1st", "2nd", "3rd", "4th", "1st_3rd", "2nd_4th"} {
		f, err := ParseFrequency(valid)
		if err != nil {
			t.Errorf("ParseFrequency(%q) unexpected error: %v", valid, err)
		}
		if string(f) != valid {
			t.Errorf("ParseFrequency(%q) = %q", valid, f)
		}
	}

	f, err := ParseFrequency("every_other_day")
	if !errors.Is(err, ErrUnknownFrequency) {
		t.Errorf("ParseFrequency(unknown) error = %v, want ErrUnknownFrequency", err)
	}
	if f != FrequencyWeekly {
		t.Errorf("ParseFrequency(unknown) fallback = %q, want weekly", f)
	}
}

func TestAppliesOnDate(t *testing.T) {
	loc := civilZone(t)
	// January 2025 Tuesdays: 7 (wk1), 14 (wk2), 21 (wk3), 28 (wk4).
	// April 2025 has a fifth Tuesday: the 29th.
	tests := []struct {
		name string
		freq Frequency
		date time.Time
		want bool
	}{
		{"weekly on matching weekday", FrequencyWeekly, time.Date(2025, 1, 7, 0, 0, 0, 0, loc), true},
		{"weekly wrong weekday", FrequencyWeekly, time.Date(2025, 1, 8, 0, 0, 0, 0, loc), false},
		{"weekly fifth week still fires", FrequencyWeekly, time.Date(2025, 4, 29, 0, 0, 0, 0, loc), true},
		{"1st on first Tuesday", FrequencyFirst, time.Date(2025, 1, 7, 0, 0, 0, 0, loc), true},
		{"1st on second Tuesday", FrequencyFirst, time.Date(2025, 1, 14, 0, 0, 0, 0, loc), false},
		{"2nd on second Tuesday", FrequencySecond, time.Date(2025, 1, 14, 0, 0, 0, 0, loc), true},
		{"1st_3rd on third Tuesday", FrequencyFirstThird, time.Date(2025, 1, 21, 0, 0, 0, 0, loc), true},
		{"1st_3rd on fourth Tuesday", FrequencyFirstThird, time.Date(2025, 1, 28, 0, 0, 0, 0, loc), false},
		{"2nd_4th on fourth Tuesday", FrequencySecondFourth, time.Date(2025, 1, 28, 0, 0, 0, 0, loc), true},
		{"2nd_4th on fifth Tuesday", FrequencySecondFourth, time.Date(2025, 4, 29, 0, 0, 0, 0, loc), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: tt.freq}
			if got := s.AppliesOnDate(tt.date); got != tt.want {
				t.Errorf("AppliesOnDate(%s) = %v, want %v", tt.date.Format(DateLayout), got, tt.want)
			}
		})
	}
}

func TestAppliesOnDateWeeklyPeriod(t *testing.T) {
	loc := civilZone(t)
	s := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyWeekly}
	start := time.Date(2025, 1, 7, 0, 0, 0, 0, loc)
	for week := 0; week < 26; week++ {
		date := start.AddDate(0, 0, 7*week)
		if !s.AppliesOnDate(date) {
			t.Errorf("weekly schedule should fire every 7 days; missed %s", date.Format(DateLayout))
		}
	}
}

func TestAppliesOnDateFirstOncePerMonth(t *testing.T) {
	loc := civilZone(t)
	s := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyFirst}
	for month := time.January; month <= time.December; month++ {
		var matches int
		for day := 1; day <= 31; day++ {
			date := time.Date(2025, month, day, 0, 0, 0, 0, loc)
			if date.Month() != month {
				continue
			}
			if s.AppliesOnDate(date) {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("frequency 1st matched %d times in %s 2025, want exactly 1", matches, month)
		}
	}
}

func TestNextOccurrence(t *testing.T) {
	loc := civilZone(t)
	weekly := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyWeekly}

	t.Run("upcoming occurrence", func(t *testing.T) {
		after := time.Date(2025, 1, 5, 12, 0, 0, 0, loc) // Sunday noon
		occ, err := weekly.NextOccurrence(after, loc)
		if err != nil {
			t.Fatalf("NextOccurrence: %v", err)
		}
		wantStart := time.Date(2025, 1, 7, 8, 0, 0, 0, loc)
		if !occ.Start.Equal(wantStart) {
			t.Errorf("start = %v, want %v", occ.Start, wantStart)
		}
		if !occ.End.Equal(time.Date(2025, 1, 7, 10, 0, 0, 0, loc)) {
			t.Errorf("end = %v", occ.End)
		}
		if occ.DateKey() != "2025-01-07" {
			t.Errorf("date key = %s", occ.DateKey())
		}
	})

	t.Run("in-progress occurrence is returned", func(t *testing.T) {
		after := time.Date(2025, 1, 7, 9, 0, 0, 0, loc) // mid-cleaning
		occ, err := weekly.NextOccurrence(after, loc)
		if err != nil {
			t.Fatalf("NextOccurrence: %v", err)
		}
		if occ.DateKey() != "2025-01-07" {
			t.Errorf("in-progress occurrence skipped; got %s", occ.DateKey())
		}
	})

	t.Run("elapsed occurrence is skipped", func(t *testing.T) {
		after := time.Date(2025, 1, 7, 10, 0, 0, 0, loc) // cleaning just ended
		occ, err := weekly.NextOccurrence(after, loc)
		if err != nil {
			t.Fatalf("NextOccurrence: %v", err)
		}
		if occ.DateKey() != "2025-01-14" {
			t.Errorf("elapsed occurrence not skipped; got %s", occ.DateKey())
		}
	})

	t.Run("monthly frequency found within bound", func(t *testing.T) {
		first := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyFirst}
		after := time.Date(2025, 1, 7, 11, 0, 0, 0, loc) // just after January's only firing
		occ, err := first.NextOccurrence(after, loc)
		if err != nil {
			t.Fatalf("NextOccurrence: %v", err)
		}
		if occ.DateKey() != "2025-02-04" {
			t.Errorf("got %s, want 2025-02-04", occ.DateKey())
		}
	})

	t.Run("malformed clock propagates error", func(t *testing.T) {
		bad := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "8am", EndTime: "10:00", Frequency: FrequencyWeekly}
		if _, err := bad.NextOccurrence(time.Date(2025, 1, 5, 0, 0, 0, 0, loc), loc); err == nil {
			t.Error("expected error for malformed start time")
		}
	})
}

func TestNextOccurrenceMonotonic(t *testing.T) {
	loc := civilZone(t)
	s := RecurringSchedule{DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencySecondFourth}

	var prevStart time.Time
	ref := time.Date(2025, 1, 1, 0, 0, 0, 0, loc)
	for hour := 0; hour < 24*60; hour += 7 {
		after := ref.Add(time.Duration(hour) * time.Hour)
		occ, err := s.NextOccurrence(after, loc)
		if err != nil {
			t.Fatalf("NextOccurrence(%v): %v", after, err)
		}
		if occ.Start.Before(prevStart) {
			t.Fatalf("monotonicity violated: start %v after previous %v", occ.Start, prevStart)
		}
		prevStart = occ.Start
	}
}

func TestOccurrenceOnDSTTransition(t *testing.T) {
	loc := civilZone(t)
	// 2025-03-09 is the spring-forward date in America/Los_Angeles.
	s := RecurringSchedule{DayOfWeek: time.Sunday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyWeekly}
	date := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	occ, err := s.OccurrenceOn(date, loc)
	if err != nil {
		t.Fatalf("OccurrenceOn: %v", err)
	}
	if occ.Start.Hour() != 8 || occ.Start.Minute() != 0 {
		t.Errorf("start wall clock = %02d:%02d, want 08:00", occ.Start.Hour(), occ.Start.Minute())
	}
	if _, offset := occ.Start.Zone(); offset != -7*3600 {
		t.Errorf("start offset = %d, want PDT (-7h)", offset)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       RecurringSchedule
		wantErr bool
	}{
		{"valid", RecurringSchedule{DayOfWeek: time.Monday, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyWeekly}, false},
		{"start after end", RecurringSchedule{DayOfWeek: time.Monday, StartTime: "10:00", EndTime: "08:00", Frequency: FrequencyWeekly}, true},
		{"start equals end", RecurringSchedule{DayOfWeek: time.Monday, StartTime: "08:00", EndTime: "08:00", Frequency: FrequencyWeekly}, true},
		{"bad clock", RecurringSchedule{DayOfWeek: time.Monday, StartTime: "25:00", EndTime: "26:00", Frequency: FrequencyWeekly}, true},
		{"bad weekday", RecurringSchedule{DayOfWeek: 9, StartTime: "08:00", EndTime: "10:00", Frequency: FrequencyWeekly}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
