package winner

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drawwin/internal/apperr"
	"drawwin/internal/mailer"
	"drawwin/internal/models"
)

// DisplayWindow is how long a paid winner stays visible on the public
// query after payout.
const DisplayWindow = 5 * time.Minute

// Service runs the winner lifecycle: selection, payout marking, deletion.
// The "at most one pending winner" invariant is backed by a partial unique
// index on the winners table, so a lost check-then-insert race surfaces as
// a rejected insert rather than a second pending row.
type Service struct {
	DB     *gorm.DB
	Mailer mailer.Notifier

	Now func() time.Time
}

func NewService(db *gorm.DB, notifier mailer.Notifier) *Service {
	return &Service{DB: db, Mailer: notifier, Now: time.Now}
}

// Select creates a pending winner from an active entry, snapshotting the
// entry's name, email and reference code.
func (s *Service) Select(ctx context.Context, entryID uint, amount decimal.Decimal) (*models.Winner, error) {
	var w models.Winner

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		if err := tx.First(&entry, entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrEntryNotFound
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
		}
		if entry.Status != models.EntryStatusActive {
			return apperr.ErrEntryNotActive
		}

		var pending int64
		err := tx.Model(&models.Winner{}).
			Where("payment_status = ?", models.WinnerStatusPending).
			Count(&pending).Error
		if err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to check pending winners", err)
		}
		if pending > 0 {
			return apperr.ErrWinnerAlreadyPending
		}

		w = models.Winner{
			EntryID:       entry.ID,
			Name:          entry.Name,
			Email:         entry.Email,
			ReferenceCode: entry.ReferenceCode,
			AnnouncedAt:   s.Now(),
			PaymentStatus: models.WinnerStatusPending,
			Amount:        amount,
		}
		if err := tx.Create(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Concurrent selection lost the race on the partial index.
				return apperr.ErrWinnerAlreadyPending
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to create winner", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"winner_id":      w.ID,
		"entry_id":       w.EntryID,
		"reference_code": w.ReferenceCode,
	}).Info("Winner selected")

	if s.Mailer != nil {
		s.Mailer.Dispatch(mailer.WinnerAnnouncement{
			To:            w.Email,
			Name:          w.Name,
			ReferenceCode: w.ReferenceCode,
			Amount:        w.Amount,
		})
	}
	return &w, nil
}

// MarkPaid flips the winner to paid and cascades winner_paid onto the
// linked entry. Both writes commit together. Paid is terminal: marking
// an already-paid winner fails with a conflict.
func (s *Service) MarkPaid(ctx context.Context, winnerID uint) (*models.Winner, error) {
	var w models.Winner

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&w, winnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrWinnerNotFound
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up winner", err)
		}
		if w.PaymentStatus == models.WinnerStatusPaid {
			// Paid is terminal; re-marking would refresh PaidAt and
			// re-open the public display window.
			return apperr.ErrWinnerAlreadyPaid
		}

		paidAt := s.Now()
		w.PaymentStatus = models.WinnerStatusPaid
		w.PaidAt = &paidAt
		if err := tx.Save(&w).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to mark winner paid", err)
		}

		err := tx.Model(&models.Entry{}).
			Where("id = ?", w.EntryID).
			Update("status", models.EntryStatusWinnerPaid).Error
		if err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to update entry status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"winner_id": w.ID, "entry_id": w.EntryID}).Info("Winner marked paid")
	return &w, nil
}

// Delete removes a winner record. The linked entry is untouched.
func (s *Service) Delete(ctx context.Context, winnerID uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Winner{}, winnerID)
	if res.Error != nil {
		return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to delete winner", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrWinnerNotFound
	}
	return nil
}

// Current returns the winner to display publicly: the pending one if any,
// else the most recently paid one within DisplayWindow, else nil.
func (s *Service) Current(ctx context.Context) (*models.Winner, error) {
	var w models.Winner
	err := s.DB.WithContext(ctx).
		Where("payment_status = ?", models.WinnerStatusPending).
		First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to query pending winner", err)
	}

	cutoff := s.Now().Add(-DisplayWindow)
	err = s.DB.WithContext(ctx).
		Where("payment_status = ? AND paid_at > ?", models.WinnerStatusPaid, cutoff).
		Order("paid_at DESC").
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to query paid winner", err)
	}
	return &w, nil
}
