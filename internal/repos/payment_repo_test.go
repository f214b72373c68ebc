package repos_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"quotedesk/internal/domain"
	"quotedesk/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repos.OpenDB("file:" + name + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertQuote(t *testing.T, db *sqlx.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO quotes(id, quote_number, customer_name, subtotal, total, expires_at)
		VALUES (?, ?, 'Tester', 100, 100, '2999-01-01T00:00:00Z')
	`, id, "Q-TEST-"+id)
	if err != nil {
		t.Fatal(err)
	}
}

// The partial unique index allows at most one live payment per quote but does
// not block a fresh attempt after the previous one settled.
func TestPaymentRepo_OneLivePaymentPerQuote(t *testing.T) {
	db := memdb(t)
	r := repos.NewPaymentRepo(db)
	insertQuote(t, db, "q1")

	first := domain.Payment{ID: "p1", QuoteID: "q1", ExternalReference: "ref-1", Amount: 100, Status: domain.PaymentStatusPending}
	if err := r.Insert(db, first); err != nil {
		t.Fatal(err)
	}

	second := domain.Payment{ID: "p2", QuoteID: "q1", ExternalReference: "ref-2", Amount: 100, Status: domain.PaymentStatusPending}
	if err := r.Insert(db, second); !errors.Is(err, domain.ErrPaymentAlreadyExists) {
		t.Fatalf("want ErrPaymentAlreadyExists, got %v", err)
	}

	ok, err := r.MarkSettled(db, "p1", domain.PaymentStatusRejected, "mp-1", "{}")
	if err != nil || !ok {
		t.Fatalf("settle failed: ok=%v err=%v", ok, err)
	}
	if err := r.Insert(db, second); err != nil {
		t.Fatalf("settled payment must not block a retry: %v", err)
	}
}

func TestPaymentRepo_ConditionalTransitions(t *testing.T) {
	db := memdb(t)
	r := repos.NewPaymentRepo(db)
	insertQuote(t, db, "q1")

	p := domain.Payment{ID: "p1", QuoteID: "q1", ExternalReference: "ref-1", Amount: 100, Status: domain.PaymentStatusPending}
	if err := r.Insert(db, p); err != nil {
		t.Fatal(err)
	}

	ok, err := r.MarkApproved(db, "p1", "mp-1", `{"status":"approved"}`, "2026-01-02T03:04:05Z")
	if err != nil || !ok {
		t.Fatalf("approve failed: ok=%v err=%v", ok, err)
	}
	// Second application of the same transition is a no-op, not an error.
	ok, err = r.MarkApproved(db, "p1", "mp-1", "{}", "2026-01-02T03:04:06Z")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("approved payment re-approved")
	}

	got, err := r.GetByID(db, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.PaymentStatusApproved || got.PaidAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("replay overwrote the record: %+v", got)
	}

	// A terminal payment cannot be cancelled or settled again.
	if ok, _ := r.CancelPending(db, "p1"); ok {
		t.Fatal("approved payment cancelled")
	}
	if ok, _ := r.MarkSettled(db, "p1", domain.PaymentStatusRejected, "mp-1", "{}"); ok {
		t.Fatal("approved payment re-settled")
	}
}

func TestPaymentRepo_Correlation(t *testing.T) {
	db := memdb(t)
	r := repos.NewPaymentRepo(db)
	insertQuote(t, db, "q1")

	p := domain.Payment{ID: "p1", QuoteID: "q1", ExternalReference: "ref-1", Amount: 100, Status: domain.PaymentStatusPending}
	if err := r.Insert(db, p); err != nil {
		t.Fatal(err)
	}

	got, err := r.GetByExternalReference(db, "ref-1")
	if err != nil || got.ID != "p1" {
		t.Fatalf("correlation failed: %+v, %v", got, err)
	}
	if _, err := r.GetByExternalReference(db, "ref-unknown"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("want ErrPaymentNotFound, got %v", err)
	}
}
