package store

import (
	"context"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
)

// Repo defines storage operations for users, medicines and the dose
// lifecycle. Status-guarded transitions are single atomic updates: the
// precondition check and the write are one statement, so of several racing
// writers only one can observe 'scheduled' and win.
type Repo interface {
	// Users.
	EnsureUser(ctx context.Context, chatID int64, createdAt string) (int64, error)
	LastMessageID(ctx context.Context, chatID int64) (int, error)
	SetLastMessageID(ctx context.Context, chatID int64, messageID int) error

	// Medicines and schedules.
	AddMedicine(ctx context.Context, userID int64, name, dosage, createdAt string, times []string) (int64, error)
	MedicinesByChat(ctx context.Context, chatID int64) ([]domain.Medicine, error)
	DeleteMedicine(ctx context.Context, medicineID int64, deletedAt string) (bool, error)

	// Settings.
	Settings(ctx context.Context, chatID int64) (domain.Settings, bool, error)
	UpsertSettings(ctx context.Context, chatID int64, s domain.Settings) error

	// Dose lifecycle.
	GenerateDoses(ctx context.Context, date string) (int, error)
	DueReminders(ctx context.Context, now string) ([]domain.Reminder, error)
	AdvanceReminder(ctx context.Context, doseID int64, intervalMinutes int) error
	MarkTaken(ctx context.Context, doseID int64, takenAt string) (bool, error)
	SnoozeDose(ctx context.Context, doseID int64, intervalMinutes int) (bool, error)
	MarkMissedBefore(ctx context.Context, cutoff string) (int, error)
	DosesBetween(ctx context.Context, chatID int64, from, to string) ([]domain.DoseView, error)

	Close() error
}
