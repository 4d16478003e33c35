package models

import (
	"testing"
	"time"
)

func TestDaysLeft(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		end  time.Time
		want int
	}{
		{"exactly seven days", now.Add(7 * 24 * time.Hour), 7},
		{"just registered, minutes into day one", now.Add(7*24*time.Hour - time.Minute), 7},
		{"one hour into the last day", now.Add(6*24*time.Hour + time.Hour), 7},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"closing this second", now, 0},
		{"already closed", now.Add(-time.Hour), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			channel := &PromotedChannel{PromotionEnd: tc.end}
			if got := channel.DaysLeft(now); got != tc.want {
				t.Errorf("DaysLeft = %d, want %d", got, tc.want)
			}
		})
	}
}
