package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.34", 12.34, true},
		{"-12.34", -12.34, true},
		{"7,5", 7.5, true},
		{"  3 ", 3, true},
		{"0", 0, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseAmount(%q) expected ErrInvalidAmount, got %v", tc.in, err)
			}
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseAmount(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-05T23:30:00-02:00", time.Date(2024, 3, 6, 1, 30, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"05/03/2024", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseDate(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{
		Start: DateTriple{Day: 1, Month: 2, Year: 2024},
		End:   DateTriple{Day: 15, Month: 3, Year: 2024},
	}
	if !r.Contains(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start day should be included")
	}
	if !r.Contains(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("end day should be included")
	}
	if r.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("day before start should be excluded")
	}
	if r.Contains(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day after end should be excluded")
	}
}

func TestFetchErrorIs(t *testing.T) {
	inner := errors.New("boom")
	err := NewFetchError("acc-1", "query transactions", inner)
	if !errors.Is(err, ErrFetchFailure) {
		t.Errorf("expected errors.Is ErrFetchFailure")
	}
	if !errors.Is(err, inner) {
		t.Errorf("expected wrapped error to be reachable")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.AccountID != "acc-1" {
		t.Errorf("expected FetchError with account id, got %v", fe)
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(2024, time.March); got != "2024-3" {
		t.Errorf("MonthKey=%q want 2024-3", got)
	}
	if got := MonthKey(2023, time.December); got != "2023-12" {
		t.Errorf("MonthKey=%q want 2023-12", got)
	}
}
