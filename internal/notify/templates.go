package notify

import (
	"fmt"
	"strings"
	"time"

	"fleetdocs/internal/document/models"
	"fleetdocs/pkg/email"
)

func reminderEmailTemplate(r models.Reminder, appName, appURL string) (string, string) {
	subject := reminderSubject(r)

	subjectLine := r.Title
	if r.EntityName != "" {
		subjectLine = fmt.Sprintf("%s (%s)", r.Title, r.EntityName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", email.GreetingName(r.Recipient))
	switch r.Kind {
	case models.ReminderExpired:
		fmt.Fprintf(&b, "%s expired on %s and needs to be renewed.\n", subjectLine, r.ExpiryDate.Format(time.DateOnly))
	default:
		fmt.Fprintf(&b, "%s expires on %s (%s).\n", subjectLine, r.ExpiryDate.Format(time.DateOnly), daysPhrase(r.DaysRemaining))
	}
	fmt.Fprintf(&b, "\nDocument number: %s\n", r.DocumentNumber)
	if appURL != "" {
		fmt.Fprintf(&b, "Open the document: %s/documents/%s\n", strings.TrimSuffix(appURL, "/"), r.DocumentID)
	}
	fmt.Fprintf(&b, "\nBest,\nThe %s Team", appName)

	return subject, b.String()
}

func reminderSubject(r models.Reminder) string {
	if r.Kind == models.ReminderExpired {
		return fmt.Sprintf("Expired: %s", r.Title)
	}
	return fmt.Sprintf("Expiring %s: %s", daysPhrase(r.DaysRemaining), r.Title)
}

func daysPhrase(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "in 1 day"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}
