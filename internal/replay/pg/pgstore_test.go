package pg

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestConsumeFirstAndSecond(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewWithDB(db)

	mock.ExpectExec("insert into consumed_tokens").
		WithArgs("sig-abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	first, err := store.Consume(context.Background(), "sig-abc")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !first {
		t.Fatal("expected first consumption to succeed")
	}

	mock.ExpectExec("insert into consumed_tokens").
		WithArgs("sig-abc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	second, err := store.Consume(context.Background(), "sig-abc")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if second {
		t.Fatal("expected repeat consumption to report false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReleaseDeletesFingerprint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewWithDB(db)

	mock.ExpectExec("delete from consumed_tokens").
		WithArgs("sig-abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Release(context.Background(), "sig-abc"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
