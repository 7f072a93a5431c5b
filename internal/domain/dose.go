package domain

// Dose lifecycle states. Taken and missed are terminal: once a dose
// reaches either, no writer may transition it again.
const (
	StatusScheduled = "scheduled"
	StatusTaken     = "taken"
	StatusMissed    = "missed"
)

// Fallback reminder settings for users without a user_settings row.
const (
	DefaultMaxReminders    = 3
	DefaultIntervalMinutes = 5
)

// Medicine is a user's medication with its daily schedule times (HH:MM).
type Medicine struct {
	ID     int64
	UserID int64
	Name   string
	Dosage string
	Times  []string
}

// Dose is one concrete occurrence of a schedule entry on one calendar date.
// ScheduledAt and NextReminderAt use the fixed "YYYY-MM-DD HH:MM" stamp.
type Dose struct {
	ID             int64
	MedicineID     int64
	ScheduledAt    string
	Status         string
	TakenAt        string
	ReminderCount  int
	NextReminderAt string
}

// Settings holds a user's reminder escalation parameters.
type Settings struct {
	MaxReminders    int
	IntervalMinutes int
}

// DefaultSettings returns the fixed fallback used when a user never
// customized their settings.
func DefaultSettings() Settings {
	return Settings{
		MaxReminders:    DefaultMaxReminders,
		IntervalMinutes: DefaultIntervalMinutes,
	}
}

// Reminder is a dose due for (re-)delivery, enriched with everything the
// transport needs to render an escalating reminder without extra queries.
type Reminder struct {
	DoseID          int64
	MedicineID      int64
	ScheduledAt     string
	Name            string
	Dosage          string
	ChatID          int64
	ReminderCount   int
	MaxReminders    int
	IntervalMinutes int
}

// DoseView is the read-side shape for today/history listings.
type DoseView struct {
	DoseID      int64
	Name        string
	Dosage      string
	ScheduledAt string
	Status      string
	TakenAt     string
}
