package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/miltonmkelley/pilyuli-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single connection; SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// EnsureUser inserts a user row for chatID if none exists and returns the
// internal user id either way.
func (r *SQLiteRepo) EnsureUser(ctx context.Context, chatID int64, createdAt string) (int64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (chat_id, created_at) VALUES (?, ?)
		ON CONFLICT(chat_id) DO NOTHING`,
		chatID, createdAt,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE chat_id = ?`, chatID,
	).Scan(&id)
	return id, err
}

// LastMessageID returns the id of the bot's last tracked message in a chat,
// or 0 if none is tracked (or the user is unknown).
func (r *SQLiteRepo) LastMessageID(ctx context.Context, chatID int64) (int, error) {
	var ns sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT last_message_id FROM users WHERE chat_id = ?`, chatID,
	).Scan(&ns)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(ns.Int64), nil
}

// SetLastMessageID records the bot's last message id for a chat.
func (r *SQLiteRepo) SetLastMessageID(ctx context.Context, chatID int64, messageID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_message_id = ? WHERE chat_id = ?`,
		messageID, chatID,
	)
	return err
}

// AddMedicine inserts a medicine and its schedule times in one transaction
// and returns the new medicine id.
func (r *SQLiteRepo) AddMedicine(ctx context.Context, userID int64, name, dosage, createdAt string, times []string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO medicines (user_id, name, dosage, created_at) VALUES (?, ?, ?, ?)`,
		userID, name, dosage, createdAt,
	)
	if err != nil {
		return 0, err
	}
	medicineID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, t := range times {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (medicine_id, time) VALUES (?, ?)`,
			medicineID, t,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return medicineID, nil
}

// MedicinesByChat lists a user's non-deleted medicines with their schedule
// times, ordered by name then time.
func (r *SQLiteRepo) MedicinesByChat(ctx context.Context, chatID int64) ([]domain.Medicine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.name, m.dosage, s.time
		FROM medicines m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN schedules s ON s.medicine_id = m.id
		WHERE u.chat_id = ? AND m.deleted_at IS NULL
		ORDER BY m.name ASC, m.id ASC, s.time ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Medicine
	for rows.Next() {
		var (
			id, userID int64
			name       string
			dosage     string
			timeNS     sql.NullString
		)
		if err := rows.Scan(&id, &userID, &name, &dosage, &timeNS); err != nil {
			return nil, err
		}
		if n := len(res); n == 0 || res[n-1].ID != id {
			res = append(res, domain.Medicine{ID: id, UserID: userID, Name: name, Dosage: dosage})
		}
		if timeNS.Valid {
			res[len(res)-1].Times = append(res[len(res)-1].Times, timeNS.String)
		}
	}
	return res, rows.Err()
}

// DeleteMedicine soft-deletes a medicine and removes its schedule entries
// and still-scheduled doses. Taken and missed doses are kept so history
// views stay intact. Returns false if the medicine does not exist or was
// already deleted.
func (r *SQLiteRepo) DeleteMedicine(ctx context.Context, medicineID int64, deletedAt string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE medicines SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		deletedAt, medicineID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM doses WHERE medicine_id = ? AND status = 'scheduled'`,
		medicineID,
	); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE medicine_id = ?`,
		medicineID,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Settings returns a user's reminder settings; the boolean reports whether
// a user_settings row exists.
func (r *SQLiteRepo) Settings(ctx context.Context, chatID int64) (domain.Settings, bool, error) {
	var s domain.Settings
	err := r.db.QueryRowContext(ctx, `
		SELECT us.max_reminders, us.reminder_interval_minutes
		FROM user_settings us
		JOIN users u ON u.id = us.user_id
		WHERE u.chat_id = ?`,
		chatID,
	).Scan(&s.MaxReminders, &s.IntervalMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, false, nil
	}
	if err != nil {
		return domain.Settings{}, false, err
	}
	return s, true, nil
}

// UpsertSettings creates or updates a user's reminder settings.
func (r *SQLiteRepo) UpsertSettings(ctx context.Context, chatID int64, s domain.Settings) error {
	var userID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE chat_id = ?`, chatID,
	).Scan(&userID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, max_reminders, reminder_interval_minutes)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			max_reminders             = excluded.max_reminders,
			reminder_interval_minutes = excluded.reminder_interval_minutes`,
		userID, s.MaxReminders, s.IntervalMinutes,
	)
	return err
}

// GenerateDoses materializes doses for every schedule entry on the given
// date (YYYY-MM-DD). The anti-join plus the UNIQUE(medicine_id,
// scheduled_at) constraint make the operation idempotent; re-running for
// the same date inserts nothing. Returns the number of doses created.
func (r *SQLiteRepo) GenerateDoses(ctx context.Context, date string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO doses (medicine_id, scheduled_at, status, reminder_count, next_reminder_at)
		SELECT s.medicine_id, ? || ' ' || s.time, 'scheduled', 0, ? || ' ' || s.time
		FROM schedules s
		WHERE NOT EXISTS (
			SELECT 1 FROM doses d
			WHERE d.medicine_id = s.medicine_id
			  AND d.scheduled_at = ? || ' ' || s.time
		)`,
		date, date, date,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DueReminders selects doses due for a (re-)reminder at the given stamp:
// still scheduled, effective next-reminder time at or before now, and
// reminder count under the owner's cap. Rows are enriched with everything
// the transport needs to render the reminder without a second query.
func (r *SQLiteRepo) DueReminders(ctx context.Context, now string) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.medicine_id, d.scheduled_at, m.name, m.dosage, u.chat_id,
		       d.reminder_count,
		       COALESCE(us.max_reminders, ?),
		       COALESCE(us.reminder_interval_minutes, ?)
		FROM doses d
		JOIN medicines m ON m.id = d.medicine_id
		JOIN users u ON u.id = m.user_id
		LEFT JOIN user_settings us ON us.user_id = u.id
		WHERE d.status = 'scheduled'
		  AND COALESCE(d.next_reminder_at, d.scheduled_at) <= ?
		  AND d.reminder_count < COALESCE(us.max_reminders, ?)
		ORDER BY d.scheduled_at ASC`,
		domain.DefaultMaxReminders, domain.DefaultIntervalMinutes,
		now, domain.DefaultMaxReminders,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Reminder
	for rows.Next() {
		var rem domain.Reminder
		if err := rows.Scan(
			&rem.DoseID, &rem.MedicineID, &rem.ScheduledAt, &rem.Name, &rem.Dosage,
			&rem.ChatID, &rem.ReminderCount, &rem.MaxReminders, &rem.IntervalMinutes,
		); err != nil {
			return nil, err
		}
		res = append(res, rem)
	}
	return res, rows.Err()
}

// AdvanceReminder increments the reminder counter and pushes the next
// reminder time forward by intervalMinutes from the dose's effective
// reminder time, in one atomic update. Called only after a reminder was
// actually delivered; skipping it on delivery failure is what makes the
// dose due again next cycle.
func (r *SQLiteRepo) AdvanceReminder(ctx context.Context, doseID int64, intervalMinutes int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE doses
		SET reminder_count   = reminder_count + 1,
		    next_reminder_at = strftime('%Y-%m-%d %H:%M',
		        COALESCE(next_reminder_at, scheduled_at),
		        printf('+%d minutes', ?))
		WHERE id = ?`,
		intervalMinutes, doseID,
	)
	return err
}

// MarkTaken transitions a dose to taken. The status guard and the write
// are one statement; false means the dose is missing or already resolved.
func (r *SQLiteRepo) MarkTaken(ctx context.Context, doseID int64, takenAt string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE doses
		SET status = 'taken', taken_at = ?
		WHERE id = ? AND status = 'scheduled'`,
		takenAt, doseID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SnoozeDose pushes the scheduled time itself forward by intervalMinutes
// and re-arms escalation: counter back to 0, next reminder at the new
// scheduled time. Both assignments read the pre-update scheduled_at, so
// they land on the same stamp. Same status guard as MarkTaken.
func (r *SQLiteRepo) SnoozeDose(ctx context.Context, doseID int64, intervalMinutes int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE doses
		SET scheduled_at     = strftime('%Y-%m-%d %H:%M', scheduled_at, printf('+%d minutes', ?)),
		    reminder_count   = 0,
		    next_reminder_at = strftime('%Y-%m-%d %H:%M', scheduled_at, printf('+%d minutes', ?))
		WHERE id = ? AND status = 'scheduled'`,
		intervalMinutes, intervalMinutes, doseID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkMissedBefore bulk-transitions every still-scheduled dose whose
// scheduled stamp is at or before the cutoff to missed. Idempotent: a
// second run with the same cutoff flips nothing new.
func (r *SQLiteRepo) MarkMissedBefore(ctx context.Context, cutoff string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE doses
		SET status = 'missed'
		WHERE status = 'scheduled' AND scheduled_at <= ?`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DosesBetween returns a user's doses with scheduled stamps in [from, to],
// ordered by scheduled time ascending. Stamp comparison is plain string
// order per the fixed-width timestamp contract.
func (r *SQLiteRepo) DosesBetween(ctx context.Context, chatID int64, from, to string) ([]domain.DoseView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, m.name, m.dosage, d.scheduled_at, d.status, d.taken_at
		FROM doses d
		JOIN medicines m ON m.id = d.medicine_id
		JOIN users u ON u.id = m.user_id
		WHERE u.chat_id = ?
		  AND d.scheduled_at >= ?
		  AND d.scheduled_at <= ?
		ORDER BY d.scheduled_at ASC`,
		chatID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.DoseView
	for rows.Next() {
		var (
			v       domain.DoseView
			takenNS sql.NullString
		)
		if err := rows.Scan(&v.DoseID, &v.Name, &v.Dosage, &v.ScheduledAt, &v.Status, &takenNS); err != nil {
			return nil, err
		}
		v.TakenAt = takenNS.String
		res = append(res, v)
	}
	return res, rows.Err()
}
