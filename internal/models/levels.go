package models

// MaxNotificationLevel is the final reminder escalation stage.
const MaxNotificationLevel = 3

// ReminderWindow describes one escalation stage of the appointment countdown.
// A ticket sitting at a level below Level whose minutes-left falls inside
// [MinMinutesLeft, MaxMinutesLeft] is due for this reminder.
type ReminderWindow struct {
	Level          int
	MinMinutesLeft float64
	MaxMinutesLeft float64
}

// ReminderWindows are disjoint by construction, so at most one window matches
// a given minutes-left value.
var ReminderWindows = []ReminderWindow{
	{Level: 1, MinMinutesLeft: 55, MaxMinutesLeft: 65},
	{Level: 2, MinMinutesLeft: 25, MaxMinutesLeft: 35},
	{Level: 3, MinMinutesLeft: 5, MaxMinutesLeft: 15},
}

// NextReminder returns the escalation level due for a ticket given its
// minutes-left and current level. ok is false when no window matches or the
// matching window's level is already satisfied.
func NextReminder(minutesLeft float64, currentLevel int) (int, bool) {
	for _, w := range ReminderWindows {
		if minutesLeft >= w.MinMinutesLeft && minutesLeft <= w.MaxMinutesLeft {
			if currentLevel < w.Level {
				return w.Level, true
			}
			return 0, false
		}
	}
	return 0, false
}

// MissedLevels returns the escalation levels whose windows have fully elapsed
// without being reached, given minutes-left and current level. Used only for
// missed-reminder accounting.
func MissedLevels(minutesLeft float64, currentLevel int) []int {
	var missed []int
	for _, w := range ReminderWindows {
		if minutesLeft < w.MinMinutesLeft && currentLevel < w.Level {
			missed = append(missed, w.Level)
		}
	}
	return missed
}
