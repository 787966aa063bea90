package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
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

func (r *noticeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Kind())
	}
	return out
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func newTestReconciler(t *testing.T) (*Reconciler, *noticeRecorder, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	rec := &noticeRecorder{}
	r := NewReconciler(db, rec, decimal.RequireFromString("50.00"), "USD")
	return r, rec, db
}

func confirmedFee(orderID string) ConfirmedPayment {
	return ConfirmedPayment{OrderID: orderID, Amount: "50.00", Currency: "USD"}
}

func TestReconcile_NewEntry(t *testing.T) {
	r, rec, db := newTestReconciler(t)

	form := Enrollment{Name: "Alice", Email: "alice@example.com", TermsAccepted: true}
	result, err := r.Reconcile(context.Background(), confirmedFee("ord-1"), form)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.IsRenewal {
		t.Error("Expected a new entry, got a renewal")
	}
	if len(result.ReferenceCode) != 7 || result.ReferenceCode[:2] != "DW" {
		t.Errorf("Unexpected reference code format: %q", result.ReferenceCode)
	}

	var entry models.Entry
	if err := db.Where("email = ?", "alice@example.com").First(&entry).Error; err != nil {
		t.Fatalf("Entry not persisted: %v", err)
	}
	if entry.Status != models.EntryStatusActive || !entry.Paid {
		t.Errorf("Expected active paid entry, got status=%s paid=%v", entry.Status, entry.Paid)
	}
	if entry.EntryCount != 1 {
		t.Errorf("Expected entry count 1, got %d", entry.EntryCount)
	}
	if !entry.TermsAccepted || entry.TermsAcceptedAt == nil {
		t.Error("Terms acceptance not recorded")
	}

	if got := rec.kinds(); len(got) != 1 || got[0] != "payment_verification" {
		t.Errorf("Expected one payment_verification notice, got %v", got)
	}
}

func TestReconcile_TermsNotAccepted(t *testing.T) {
	r, _, db := newTestReconciler(t)

	form := Enrollment{Name: "Bob", Email: "bob@example.com", TermsAccepted: false}
	_, err := r.Reconcile(context.Background(), confirmedFee("ord-1"), form)
	if !errors.Is(err, apperr.ErrTermsNotAccepted) {
		t.Fatalf("Expected terms_not_accepted, got %v", err)
	}

	var count int64
	db.Model(&models.Entry{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected no mutation, found %d entries", count)
	}
}

func TestReconcile_PaymentMismatch(t *testing.T) {
	r, _, _ := newTestReconciler(t)
	form := Enrollment{Name: "Bob", Email: "bob@example.com", TermsAccepted: true}

	cases := []ConfirmedPayment{
		{OrderID: "ord-1", Amount: "49.99", Currency: "USD"},
		{OrderID: "ord-2", Amount: "50.00", Currency: "EUR"},
		{OrderID: "ord-3", Amount: "not-a-number", Currency: "USD"},
	}
	for _, pay := range cases {
		if _, err := r.Reconcile(context.Background(), pay, form); !errors.Is(err, apperr.ErrPaymentMismatch) {
			t.Errorf("Payment %+v: expected payment_mismatch, got %v", pay, err)
		}
	}
}

func TestReconcile_AlreadyActive(t *testing.T) {
	r, rec, db := newTestReconciler(t)

	form := Enrollment{Name: "Alice", Email: "alice@example.com", TermsAccepted: true}
	if _, err := r.Reconcile(context.Background(), confirmedFee("ord-1"), form); err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}

	_, err := r.Reconcile(context.Background(), confirmedFee("ord-2"), form)
	if !errors.Is(err, apperr.ErrAlreadyActive) {
		t.Fatalf("Expected already_active, got %v", err)
	}

	var count int64
	db.Model(&models.Entry{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected exactly one entry, got %d", count)
	}
	if got := rec.kinds(); len(got) != 1 {
		t.Errorf("Expected no second notification, got %v", got)
	}
}

func TestReconcile_RenewalKeepsReferenceCode(t *testing.T) {
	r, rec, db := newTestReconciler(t)

	form := Enrollment{Name: "Alice", Email: "alice@example.com", TermsAccepted: true}
	first, err := r.Reconcile(context.Background(), confirmedFee("ord-1"), form)
	if err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}

	// Simulate the monthly reset expiring the entry.
	db.Model(&models.Entry{}).Where("email = ?", "alice@example.com").
		Update("status", models.EntryStatusExpired)

	second, err := r.Reconcile(context.Background(), confirmedFee("ord-2"), form)
	if err != nil {
		t.Fatalf("Renewal reconcile failed: %v", err)
	}
	if !second.IsRenewal {
		t.Error("Expected a renewal")
	}
	if second.ReferenceCode != first.ReferenceCode {
		t.Errorf("Reference code changed on renewal: %q -> %q", first.ReferenceCode, second.ReferenceCode)
	}

	var entry models.Entry
	db.Where("email = ?", "alice@example.com").First(&entry)
	if entry.EntryCount != 2 {
		t.Errorf("Expected entry count 2 after renewal, got %d", entry.EntryCount)
	}
	if entry.Status != models.EntryStatusActive {
		t.Errorf("Expected active status after renewal, got %s", entry.Status)
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[1] != "renewal_notification" {
		t.Errorf("Expected renewal_notification second, got %v", kinds)
	}
}

func TestReconcile_RenewalCountsParallelPayment(t *testing.T) {
	r, _, db := newTestReconciler(t)

	form := Enrollment{Name: "Alice", Email: "alice@example.com", TermsAccepted: true}
	if _, err := r.Reconcile(context.Background(), confirmedFee("ord-1"), form); err != nil {
		t.Fatal(err)
	}
	db.Model(&models.Entry{}).Where("email = ?", "alice@example.com").
		Update("status", models.EntryStatusExpired)

	// A second capture lands after the renewal's in-transaction read.
	// The stored counter must end at the database value plus one, not at
	// the stale snapshot plus one.
	bumped := false
	err := db.Callback().Query().After("gorm:query").Register("parallel_capture", func(d *gorm.DB) {
		if bumped || d.Statement.Table != "entries" {
			return
		}
		bumped = true
		err := d.Session(&gorm.Session{NewDB: true}).Model(&models.Entry{}).
			Where("email = ?", "alice@example.com").
			UpdateColumn("entry_count", gorm.Expr("entry_count + ?", 1)).Error
		if err != nil {
			t.Errorf("failed to bump entry count: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
	defer db.Callback().Query().Remove("parallel_capture")

	if _, err := r.Reconcile(context.Background(), confirmedFee("ord-2"), form); err != nil {
		t.Fatalf("Renewal reconcile failed: %v", err)
	}

	var entry models.Entry
	db.Where("email = ?", "alice@example.com").First(&entry)
	if entry.EntryCount != 3 {
		t.Errorf("Expected both payments counted (3), got %d", entry.EntryCount)
	}
}

func TestReconcile_ConcurrentEnrollmentDuplicateEmail(t *testing.T) {
	r, rec, db := newTestReconciler(t)

	// A rival enrollment commits between the reconciler's lookup and its
	// insert. The insert trips the email unique index and must surface
	// as duplicate_email, not burn allocation retries.
	injected := false
	err := db.Callback().Query().After("gorm:query").Register("rival_enrollment", func(d *gorm.DB) {
		if injected || d.Statement.Table != "entries" {
			return
		}
		injected = true
		rival := models.Entry{
			Name:          "Rival",
			Email:         "race@example.com",
			ReferenceCode: "DW43210",
			Paid:          true,
			Status:        models.EntryStatusActive,
			EntryCount:    1,
		}
		// The triggering lookup ended in record-not-found; clear it so
		// the rival insert is not skipped.
		sess := d.Session(&gorm.Session{NewDB: true})
		sess.Error = nil
		if err := sess.Create(&rival).Error; err != nil {
			t.Errorf("failed to insert rival entry: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
	defer db.Callback().Query().Remove("rival_enrollment")

	form := Enrollment{Name: "Late", Email: "race@example.com", TermsAccepted: true}
	_, err = r.Reconcile(context.Background(), confirmedFee("ord-1"), form)
	if !errors.Is(err, apperr.ErrDuplicateEmail) {
		t.Fatalf("Expected duplicate_email, got %v", err)
	}
	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("Expected no notification for the losing enrollment, got %v", got)
	}
}

func TestReconcile_ReferralValidation(t *testing.T) {
	r, _, db := newTestReconciler(t)

	// Seed a referrer.
	ref := Enrollment{Name: "Ref", Email: "ref@example.com", TermsAccepted: true}
	refResult, err := r.Reconcile(context.Background(), confirmedFee("ord-ref"), ref)
	if err != nil {
		t.Fatalf("Failed to seed referrer: %v", err)
	}

	t.Run("invalid code", func(t *testing.T) {
		form := Enrollment{Name: "Bob", Email: "bob@example.com", ReferralCode: "DW99999x", TermsAccepted: true}
		if _, err := r.Reconcile(context.Background(), confirmedFee("o1"), form); !errors.Is(err, apperr.ErrInvalidReferral) {
			t.Errorf("Expected invalid_referral_code, got %v", err)
		}
	})

	t.Run("self referral", func(t *testing.T) {
		db.Model(&models.Entry{}).Where("email = ?", "ref@example.com").
			Update("status", models.EntryStatusExpired)
		form := Enrollment{Name: "Ref", Email: "ref@example.com", ReferralCode: refResult.ReferenceCode, TermsAccepted: true}
		if _, err := r.Reconcile(context.Background(), confirmedFee("o2"), form); !errors.Is(err, apperr.ErrSelfReferral) {
			t.Errorf("Expected self_referral, got %v", err)
		}
	})

	t.Run("referrer inactive", func(t *testing.T) {
		// Referrer is still expired from the previous subtest.
		form := Enrollment{Name: "Bob", Email: "bob@example.com", ReferralCode: refResult.ReferenceCode, TermsAccepted: true}
		if _, err := r.Reconcile(context.Background(), confirmedFee("o3"), form); !errors.Is(err, apperr.ErrReferrerInactive) {
			t.Errorf("Expected referrer_inactive, got %v", err)
		}
		db.Model(&models.Entry{}).Where("email = ?", "ref@example.com").
			Update("status", models.EntryStatusActive)
	})

	t.Run("valid referral attaches and counts", func(t *testing.T) {
		form := Enrollment{Name: "Bob", Email: "bob@example.com", ReferralCode: refResult.ReferenceCode, TermsAccepted: true}
		if _, err := r.Reconcile(context.Background(), confirmedFee("o4"), form); err != nil {
			t.Fatalf("Reconcile with referral failed: %v", err)
		}

		var referrer, referee models.Entry
		db.Where("email = ?", "ref@example.com").First(&referrer)
		db.Where("email = ?", "bob@example.com").First(&referee)
		if referrer.ReferralCount != 1 {
			t.Errorf("Expected referral count 1, got %d", referrer.ReferralCount)
		}
		if referee.ReferrerID == nil || *referee.ReferrerID != referrer.ID {
			t.Error("Referee not linked to referrer")
		}
	})
}

func TestReconcile_FirstReferralWins(t *testing.T) {
	r, _, db := newTestReconciler(t)

	refA, err := r.Reconcile(context.Background(), confirmedFee("a"), Enrollment{Name: "A", Email: "a@example.com", TermsAccepted: true})
	if err != nil {
		t.Fatal(err)
	}
	refB, err := r.Reconcile(context.Background(), confirmedFee("b"), Enrollment{Name: "B", Email: "b@example.com", TermsAccepted: true})
	if err != nil {
		t.Fatal(err)
	}

	// New entry referred by A.
	form := Enrollment{Name: "C", Email: "c@example.com", ReferralCode: refA.ReferenceCode, TermsAccepted: true}
	if _, err := r.Reconcile(context.Background(), confirmedFee("c1"), form); err != nil {
		t.Fatal(err)
	}

	// Renewal declaring B as referrer must not overwrite the link to A
	// and must not touch B's counter.
	db.Model(&models.Entry{}).Where("email = ?", "c@example.com").
		Update("status", models.EntryStatusExpired)
	form.ReferralCode = refB.ReferenceCode
	if _, err := r.Reconcile(context.Background(), confirmedFee("c2"), form); err != nil {
		t.Fatal(err)
	}

	var a, b, c models.Entry
	db.Where("email = ?", "a@example.com").First(&a)
	db.Where("email = ?", "b@example.com").First(&b)
	db.Where("email = ?", "c@example.com").First(&c)

	if c.ReferrerID == nil || *c.ReferrerID != a.ID {
		t.Error("Renewal overwrote the original referrer link")
	}
	if a.ReferralCount != 1 {
		t.Errorf("Expected referrer A count 1, got %d", a.ReferralCount)
	}
	if b.ReferralCount != 0 {
		t.Errorf("Expected referrer B count 0, got %d", b.ReferralCount)
	}
}

func TestReconcile_ReferralCounterExact(t *testing.T) {
	r, _, db := newTestReconciler(t)

	ref, err := r.Reconcile(context.Background(), confirmedFee("ref"), Enrollment{Name: "Ref", Email: "ref@example.com", TermsAccepted: true})
	if err != nil {
		t.Fatal(err)
	}

	const n = 5
	emails := []string{"u1@example.com", "u2@example.com", "u3@example.com", "u4@example.com", "u5@example.com"}
	for i := 0; i < n; i++ {
		form := Enrollment{Name: "U", Email: emails[i], ReferralCode: ref.ReferenceCode, TermsAccepted: true}
		if _, err := r.Reconcile(context.Background(), confirmedFee(emails[i]), form); err != nil {
			t.Fatalf("Reconcile %d failed: %v", i, err)
		}
	}

	var referrer models.Entry
	db.Where("email = ?", "ref@example.com").First(&referrer)
	if referrer.ReferralCount != n {
		t.Errorf("Expected referral count %d, got %d", n, referrer.ReferralCount)
	}
}

func TestReconcile_RenewalDueWindow(t *testing.T) {
	r, _, db := newTestReconciler(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return fixed }

	if _, err := r.Reconcile(context.Background(), confirmedFee("o"), Enrollment{Name: "A", Email: "a@example.com", TermsAccepted: true}); err != nil {
		t.Fatal(err)
	}

	var entry models.Entry
	db.Where("email = ?", "a@example.com").First(&entry)
	want := fixed.Add(30 * 24 * time.Hour)
	if !entry.RenewalDue.Equal(want) {
		t.Errorf("Expected renewal due %v, got %v", want, entry.RenewalDue)
	}
}
