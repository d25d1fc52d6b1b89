package reminder

import (
	"strings"
	"time"

	"appointment-service/internal/models"
)

const (
	clientHeader = "Appointment reminder"
	staffHeader  = "Staff reminder"

	dateLayout = "Mon, 02 Jan 2006"
	timeLayout = "15:04"
)

// Render fills template for appt and wraps it in the header of class.
func Render(template string, appt models.Appointment, class models.RecipientClass, loc *time.Location) string {
	header := clientHeader
	if class == models.RecipientEmployees {
		header = staffHeader
	}
	return header + "\n\n" + Compose(template, appt, loc)
}

// Compose fills the placeholders of template. {name} expands to the
// appointment's contact names. A meeting link is appended when the template
// has no place for it.
func Compose(template string, appt models.Appointment, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start := appt.Start.In(loc)

	var names []string
	for _, c := range appt.Contacts {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}

	body := strings.NewReplacer(
		"{title}", appt.Title,
		"{date}", start.Format(dateLayout),
		"{time}", start.Format(timeLayout),
		"{name}", strings.Join(names, ", "),
		"{meeting_link}", appt.MeetingLink,
	).Replace(template)

	if appt.MeetingLink != "" && !strings.Contains(template, "{meeting_link}") {
		body += "\nJoin: " + appt.MeetingLink
	}
	return body
}
