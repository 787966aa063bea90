package membership

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"drawwin/internal/apperr"
	"drawwin/internal/database"
	"drawwin/internal/mailer"
	"drawwin/internal/models"
)

type noticeRecorder struct {
	mu      sync.Mutex
	notices []mailer.Notice
}

func (r *noticeRecorder) Dispatch(n mailer.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func seedEntry(t *testing.T, db *gorm.DB, email, code, status string) *models.Entry {
	t.Helper()
	entry := models.Entry{
		Name:          "Member",
		Email:         email,
		ReferenceCode: code,
		Paid:          true,
		Status:        status,
		EntryCount:    1,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
	return &entry
}

func TestMonthlyReset(t *testing.T) {
	db := openTestDB(t)
	rec := &noticeRecorder{}
	ledger := NewLedger(db, rec)

	seedEntry(t, db, "a@example.com", "DW00001", models.EntryStatusActive)
	seedEntry(t, db, "b@example.com", "DW00002", models.EntryStatusActive)
	seedEntry(t, db, "c@example.com", "DW00003", models.EntryStatusActive)
	seedEntry(t, db, "d@example.com", "DW00004", models.EntryStatusExpired)
	seedEntry(t, db, "e@example.com", "DW00005", models.EntryStatusWinnerPaid)

	expired, err := ledger.MonthlyReset(context.Background())
	if err != nil {
		t.Fatalf("MonthlyReset failed: %v", err)
	}
	if expired != 3 {
		t.Errorf("Expected 3 expired entries, got %d", expired)
	}

	var active int64
	db.Model(&models.Entry{}).Where("status = ?", models.EntryStatusActive).Count(&active)
	if active != 0 {
		t.Errorf("Expected no active entries after reset, got %d", active)
	}

	// Expired and winner_paid entries stay untouched.
	var winnerPaid int64
	db.Model(&models.Entry{}).Where("status = ?", models.EntryStatusWinnerPaid).Count(&winnerPaid)
	if winnerPaid != 1 {
		t.Errorf("winner_paid entry was modified by the reset")
	}

	if rec.count() != 3 {
		t.Errorf("Expected 3 renewal reminders, got %d", rec.count())
	}

	// Recorded the reset time.
	if val, err := ledger.GetSetting(context.Background(), SettingLastReset, ""); err != nil || val == "" {
		t.Errorf("Expected last_reset_at setting, got %q (err %v)", val, err)
	}

	t.Run("idempotent with no active entries", func(t *testing.T) {
		expired, err := ledger.MonthlyReset(context.Background())
		if err != nil {
			t.Fatalf("Second reset failed: %v", err)
		}
		if expired != 0 {
			t.Errorf("Expected a no-op, got %d expired", expired)
		}
		if rec.count() != 3 {
			t.Errorf("No-op reset dispatched reminders")
		}
	})
}

func TestDeleteEntry(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedger(db, nil)

	t.Run("unknown entry", func(t *testing.T) {
		if err := ledger.DeleteEntry(context.Background(), 9999); !errors.Is(err, apperr.ErrEntryNotFound) {
			t.Errorf("Expected entry_not_found, got %v", err)
		}
	})

	t.Run("blocked while a winner references it", func(t *testing.T) {
		entry := seedEntry(t, db, "w@example.com", "DW00010", models.EntryStatusActive)
		w := models.Winner{
			EntryID:       entry.ID,
			Name:          entry.Name,
			Email:         entry.Email,
			ReferenceCode: entry.ReferenceCode,
			PaymentStatus: models.WinnerStatusPaid,
		}
		if err := db.Create(&w).Error; err != nil {
			t.Fatalf("failed to seed winner: %v", err)
		}

		if err := ledger.DeleteEntry(context.Background(), entry.ID); !errors.Is(err, apperr.ErrEntryReferencedByWinner) {
			t.Errorf("Expected entry_referenced_by_winner, got %v", err)
		}

		var count int64
		db.Model(&models.Entry{}).Where("id = ?", entry.ID).Count(&count)
		if count != 1 {
			t.Error("Referenced entry was deleted")
		}
	})

	t.Run("unreferenced entry deleted", func(t *testing.T) {
		entry := seedEntry(t, db, "free@example.com", "DW00011", models.EntryStatusActive)
		if err := ledger.DeleteEntry(context.Background(), entry.ID); err != nil {
			t.Fatalf("DeleteEntry failed: %v", err)
		}

		var count int64
		db.Model(&models.Entry{}).Where("id = ?", entry.ID).Count(&count)
		if count != 0 {
			t.Error("Entry still present after delete")
		}
	})
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedger(db, nil)
	ctx := context.Background()

	val, err := ledger.GetSetting(ctx, "winner_amount", "1000.00")
	if err != nil || val != "1000.00" {
		t.Errorf("Expected fallback value, got %q (err %v)", val, err)
	}

	if err := ledger.SetSetting(ctx, "winner_amount", "2500.00"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := ledger.SetSetting(ctx, "winner_amount", "3000.00"); err != nil {
		t.Fatalf("SetSetting upsert failed: %v", err)
	}

	val, err = ledger.GetSetting(ctx, "winner_amount", "1000.00")
	if err != nil || val != "3000.00" {
		t.Errorf("Expected upserted value, got %q (err %v)", val, err)
	}
}
