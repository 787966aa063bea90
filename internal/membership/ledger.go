package membership

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"drawwin/internal/apperr"
	"drawwin/internal/mailer"
	"drawwin/internal/models"
)

// SettingLastReset records when the last monthly reset ran.
const SettingLastReset = "last_reset_at"

// Ledger owns the entries table. All entry mutations outside payment
// reconciliation go through here so the storage invariants stay in one
// place.
type Ledger struct {
	DB     *gorm.DB
	Mailer mailer.Notifier

	Now func() time.Time
}

func NewLedger(db *gorm.DB, notifier mailer.Notifier) *Ledger {
	return &Ledger{DB: db, Mailer: notifier, Now: time.Now}
}

func (l *Ledger) FindByEmail(ctx context.Context, email string) (*models.Entry, error) {
	var entry models.Entry
	err := l.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrEntryNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
	}
	return &entry, nil
}

func (l *Ledger) FindByReferenceCode(ctx context.Context, code string) (*models.Entry, error) {
	var entry models.Entry
	err := l.DB.WithContext(ctx).Where("reference_code = ?", code).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrEntryNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
	}
	return &entry, nil
}

func (l *Ledger) ListEntries(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	if err := l.DB.WithContext(ctx).Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to list entries", err)
	}
	return entries, nil
}

// DeleteEntry removes an entry that no Winner record references. The guard
// blocks deletion rather than cascading: winner history must stay intact.
func (l *Ledger) DeleteEntry(ctx context.Context, entryID uint) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		if err := tx.First(&entry, entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrEntryNotFound
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
		}

		var refs int64
		if err := tx.Model(&models.Winner{}).Where("entry_id = ?", entry.ID).Count(&refs).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to check winner references", err)
		}
		if refs > 0 {
			return apperr.ErrEntryReferencedByWinner
		}

		if err := tx.Delete(&entry).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to delete entry", err)
		}
		return nil
	})
}

// GetSetting reads a value from the key/value settings table; missing keys
// return the fallback.
func (l *Ledger) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var setting models.Setting
	err := l.DB.WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindPersistence, "db_error", "failed to read setting", err)
	}
	return setting.Value, nil
}

// SetSetting upserts a key/value pair.
func (l *Ledger) SetSetting(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	err := l.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to write setting", err)
	}
	return nil
}

// MonthlyReset expires every active entry and queues a renewal reminder
// for each. Running it again with no active entries is a no-op. The
// trigger is external; there is no scheduler in here.
func (l *Ledger) MonthlyReset(ctx context.Context) (int, error) {
	var affected []models.Entry

	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", models.EntryStatusActive).Find(&affected).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to collect active entries", err)
		}
		if len(affected) == 0 {
			return nil
		}

		err := tx.Model(&models.Entry{}).
			Where("status = ?", models.EntryStatusActive).
			Update("status", models.EntryStatusExpired).Error
		if err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to expire entries", err)
		}

		setting := models.Setting{Key: SettingLastReset, Value: l.Now().UTC().Format(time.RFC3339)}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&setting).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to record reset time", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Reminders go out after the commit; a failed send never unwinds the
	// reset.
	if l.Mailer != nil {
		for _, e := range affected {
			l.Mailer.Dispatch(mailer.RenewalReminder{
				To:            e.Email,
				Name:          e.Name,
				ReferenceCode: e.ReferenceCode,
			})
		}
	}

	log.WithField("expired", len(affected)).Info("Monthly reset applied")
	return len(affected), nil
}
