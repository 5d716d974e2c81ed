package notify

import "fmt"

// Message bodies mirror the reminder escalation stages: one hour, thirty
// minutes, ten minutes.
func reminderMessage(displayNumber string, level int) string {
	switch level {
	case 1:
		return fmt.Sprintf("Your appointment is in about 1 hour. Ticket number: %s", displayNumber)
	case 2:
		return fmt.Sprintf("30 minutes left until your appointment. Ticket number: %s", displayNumber)
	case 3:
		return fmt.Sprintf("10 minutes left! Please head to the service point now. Ticket number: %s", displayNumber)
	default:
		return fmt.Sprintf("Reminder for ticket %s", displayNumber)
	}
}

func calledMessage(displayNumber string) string {
	return fmt.Sprintf("It's your turn! Ticket number: %s. Please proceed to the counter.", displayNumber)
}

func transferMessage(displayNumber, newServiceName string) string {
	return fmt.Sprintf("Your ticket %s was transferred to %s. You are back in the waiting queue.", displayNumber, newServiceName)
}

func reminderSubject(level int) string {
	switch level {
	case 1:
		return "Appointment reminder: 1 hour left"
	case 2:
		return "Appointment reminder: 30 minutes left"
	case 3:
		return "Appointment reminder: 10 minutes left"
	default:
		return "Appointment reminder"
	}
}
