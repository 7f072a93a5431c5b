package service

import (
	"context"
	"errors"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
)

// RegisterUser makes sure a user row exists for the chat and returns the
// internal user id.
func (s *Service) RegisterUser(ctx context.Context, chatID int64, now string) (int64, error) {
	return s.repo.EnsureUser(ctx, chatID, now)
}

// AddMedicine registers a medicine with its daily schedule times for the
// chat's user, creating the user first if needed. Times must already be
// normalized "HH:MM" strings (see domain.ParseTimesOfDay).
func (s *Service) AddMedicine(ctx context.Context, chatID int64, name, dosage, now string, times []string) (int64, error) {
	if name == "" {
		return 0, errors.New("empty medicine name")
	}
	if len(times) == 0 {
		return 0, errors.New("no schedule times")
	}
	userID, err := s.repo.EnsureUser(ctx, chatID, now)
	if err != nil {
		return 0, err
	}
	return s.repo.AddMedicine(ctx, userID, name, dosage, now, times)
}

// Medicines lists the chat's medicines with their schedule times.
func (s *Service) Medicines(ctx context.Context, chatID int64) ([]domain.Medicine, error) {
	return s.repo.MedicinesByChat(ctx, chatID)
}

// DeleteMedicine removes a medicine, its schedule entries and its
// still-scheduled doses. Taken and missed doses survive for history.
// False means the medicine was not found (or already deleted).
func (s *Service) DeleteMedicine(ctx context.Context, medicineID int64, now string) (bool, error) {
	return s.repo.DeleteMedicine(ctx, medicineID, now)
}

// UpdateSettings stores a user's escalation cap and reminder interval.
func (s *Service) UpdateSettings(ctx context.Context, chatID int64, set domain.Settings) error {
	if set.MaxReminders < 1 || set.MaxReminders > 10 {
		return errors.New("max reminders out of range")
	}
	if set.IntervalMinutes < 1 {
		return errors.New("interval must be positive")
	}
	return s.repo.UpsertSettings(ctx, chatID, set)
}

// LastMessageID returns the id of the bot's last tracked message in a
// chat, 0 when none.
func (s *Service) LastMessageID(ctx context.Context, chatID int64) (int, error) {
	return s.repo.LastMessageID(ctx, chatID)
}

// SetLastMessageID records the bot's last message id for a chat.
func (s *Service) SetLastMessageID(ctx context.Context, chatID int64, messageID int) error {
	return s.repo.SetLastMessageID(ctx, chatID, messageID)
}
