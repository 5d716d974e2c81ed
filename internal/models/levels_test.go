package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextReminder(t *testing.T) {
	tests := []struct {
		name         string
		minutesLeft  float64
		currentLevel int
		wantLevel    int
		wantDue      bool
	}{
		{"one hour window lower edge", 55, 0, 1, true},
		{"one hour window upper edge", 65, 0, 1, true},
		{"one hour window middle", 60, 0, 1, true},
		{"thirty minute window", 30, 1, 2, true},
		{"ten minute window", 10, 2, 3, true},
		{"between windows", 45, 0, 0, false},
		{"above all windows", 90, 0, 0, false},
		{"past the appointment", -5, 0, 0, false},
		{"window already satisfied", 60, 1, 0, false},
		{"final window already satisfied", 10, 3, 0, false},
		// A ticket entering late skips straight to the window it sits in.
		{"level jump from zero inside final window", 10, 0, 3, true},
		{"level jump from one inside final window", 12, 1, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, due := NextReminder(tt.minutesLeft, tt.currentLevel)
			assert.Equal(t, tt.wantDue, due)
			assert.Equal(t, tt.wantLevel, level)
		})
	}
}

func TestNextReminder_WindowsAreDisjoint(t *testing.T) {
	// Exactly one window at most may match any minutes-left value.
	for m := -10.0; m <= 120; m += 0.5 {
		matches := 0
		for _, w := range ReminderWindows {
			if m >= w.MinMinutesLeft && m <= w.MaxMinutesLeft {
				matches++
			}
		}
		assert.LessOrEqual(t, matches, 1, fmt.Sprintf("minutesLeft=%v", m))
	}
}

func TestMissedLevels(t *testing.T) {
	tests := []struct {
		name         string
		minutesLeft  float64
		currentLevel int
		want         []int
	}{
		{"nothing missed before first window", 70, 0, nil},
		{"first window elapsed", 50, 0, []int{1}},
		{"first satisfied, none missed yet", 50, 1, nil},
		{"two windows elapsed", 20, 0, []int{1, 2}},
		{"all windows elapsed", 2, 0, []int{1, 2, 3}},
		{"all elapsed but fully escalated", 2, 3, nil},
		{"partially escalated", 2, 2, []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MissedLevels(tt.minutesLeft, tt.currentLevel))
		})
	}
}
